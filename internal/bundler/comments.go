package bundler

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// esbuild only prints legal comments, so statement level comments in project
// sources are tagged as legal on load and the tag is removed from the output.
const (
	lineTag  = "//!lambundle:"
	blockTag = "/*!lambundle:"
)

var (
	lineComment  = regexp.MustCompile(`(?m)^([ \t]*)//`)
	blockComment = regexp.MustCompile(`(?m)^([ \t]*)/\*`)
)

var sourceLoaders = map[string]api.Loader{
	".js":  api.LoaderJS,
	".cjs": api.LoaderJS,
	".mjs": api.LoaderJS,
	".jsx": api.LoaderJSX,
	".ts":  api.LoaderTS,
	".cts": api.LoaderTS,
	".mts": api.LoaderTS,
	".tsx": api.LoaderTSX,
}

// keepComments is active for unminified bundles only. Dependencies under
// node_modules load unchanged.
func keepComments() api.Plugin {
	return api.Plugin{
		Name: "keep-comments",
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: `\.(c|m)?(j|t)sx?$`, Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					if isDependency(args.Path) {
						return api.OnLoadResult{}, nil
					}
					loader, ok := sourceLoaders[strings.ToLower(filepath.Ext(args.Path))]
					if !ok {
						return api.OnLoadResult{}, nil
					}
					src, err := os.ReadFile(args.Path)
					if err != nil {
						return api.OnLoadResult{}, err
					}
					contents := string(tagComments(src))
					return api.OnLoadResult{
						Contents:   &contents,
						Loader:     loader,
						ResolveDir: filepath.Dir(args.Path),
					}, nil
				})
		},
	}
}

func isDependency(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "node_modules" {
			return true
		}
	}
	return false
}

func tagComments(src []byte) []byte {
	src = lineComment.ReplaceAll(src, []byte("${1}"+lineTag))
	return blockComment.ReplaceAll(src, []byte("${1}"+blockTag))
}

func untagComments(code []byte) []byte {
	code = bytes.ReplaceAll(code, []byte(lineTag), []byte("//"))
	return bytes.ReplaceAll(code, []byte(blockTag), []byte("/*"))
}
