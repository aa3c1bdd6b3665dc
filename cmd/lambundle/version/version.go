package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/flarebyte/lambundle/cli"
	"github.com/flarebyte/lambundle/internal/buildinfo"
)

var (
	flagShort bool
	flagJSON  bool
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagShort || !flagJSON {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "lambundle %s\n", buildinfo.Summary())
			return err
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "lambundle version: %s\n", buildinfo.Summary())
		out := map[string]any{
			"version":    buildinfo.Version,
			"commit":     buildinfo.Commit,
			"date":       buildinfo.Date,
			"built_by":   buildinfo.BuiltBy,
			"build_date": cli.NiceDate(),
			"go":         runtime.Version(),
			"go_os":      runtime.GOOS,
			"go_arch":    runtime.GOARCH,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	VersionCmd.Flags().BoolVar(&flagShort, "short", false, "Print only the version string")
	VersionCmd.Flags().BoolVar(&flagJSON, "json", false, "Print detailed JSON version info")
}
