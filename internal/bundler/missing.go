package bundler

import (
	"sort"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
)

type resolveMarker struct{}

// missingModules marks imports that cannot be resolved as external instead of
// failing the build, and remembers them.
type missingModules struct {
	mu    sync.Mutex
	paths map[string]bool
}

func (m *missingModules) plugin() api.Plugin {
	return api.Plugin{
		Name: "ignore-missing",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `.*`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					if args.Kind == api.ResolveEntryPoint {
						return api.OnResolveResult{}, nil
					}
					if _, ok := args.PluginData.(resolveMarker); ok {
						return api.OnResolveResult{}, nil
					}
					res := build.Resolve(args.Path, api.ResolveOptions{
						Importer:   args.Importer,
						Namespace:  args.Namespace,
						ResolveDir: args.ResolveDir,
						Kind:       args.Kind,
						PluginData: resolveMarker{},
					})
					if len(res.Errors) > 0 {
						m.add(args.Path)
						return api.OnResolveResult{Path: args.Path, External: true}, nil
					}
					return api.OnResolveResult{
						Path:       res.Path,
						External:   res.External,
						Namespace:  res.Namespace,
						PluginData: res.PluginData,
					}, nil
				})
		},
	}
}

func (m *missingModules) add(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paths == nil {
		m.paths = map[string]bool{}
	}
	m.paths[path] = true
}

func (m *missingModules) warnings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.paths))
	for p := range m.paths {
		out = append(out, "unresolved module left external: "+p)
	}
	sort.Strings(out)
	return out
}
