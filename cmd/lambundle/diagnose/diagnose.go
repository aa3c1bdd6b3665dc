package diagnose

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flarebyte/lambundle/cmd/lambundle/build"
	"github.com/flarebyte/lambundle/internal/stage"
)

// NewCmd returns `lambundle diagnose`: it prints the stage plan of a config and
// the envelope summary after running it, optionally stopping early.
func NewCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "diagnose",
		Short:         "Show the stage plan and run it up to a given stage",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return v.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := build.LoadRaw(v)
			if err != nil {
				return err
			}
			return run(cmd, raw, v.GetString("until-stage"), v.GetString("dump-dir"), v.GetBool("plan-only"))
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to config file (.cue, .json, .yaml)")
	cmd.Flags().String("until-stage", "", "Stop after this stage")
	cmd.Flags().String("dump-dir", "", "Write the envelope summary before and after each stage to this directory")
	cmd.Flags().Bool("plan-only", false, "Only normalize the config and print the plan")
	return cmd
}

type result struct {
	Plan     []string       `json:"plan"`
	Envelope stage.Snapshot `json:"envelope"`
}

func run(cmd *cobra.Command, raw map[string]any, until, dumpDir string, planOnly bool) error {
	ctx := cmd.Context()
	deps := stage.Deps{}
	out, err := stage.Run(ctx, "normalize-config", stage.Envelope{Raw: raw}, deps)
	if err != nil {
		return err
	}
	out.Stages = append(out.Stages, "normalize-config")
	plan := stage.Plan(out.Config)
	if planOnly {
		return printOneLine(cmd.OutOrStdout(), result{Plan: plan, Envelope: out.Snapshot()})
	}
	stages, err := stage.Truncate(plan, until)
	if err != nil {
		return err
	}
	for i, name := range stages[1:] {
		seq := i + 2
		if err := dump(dumpDir, seq, name, "in", out); err != nil {
			return err
		}
		next, err := stage.RunStages(ctx, out, []string{name}, deps)
		if err != nil {
			return err
		}
		if err := dump(dumpDir, seq, name, "out", next); err != nil {
			return err
		}
		out = next
	}
	return printOneLine(cmd.OutOrStdout(), result{Plan: plan, Envelope: out.Snapshot()})
}

func dump(dir string, seq int, name, suffix string, env stage.Envelope) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(env.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	p := filepath.Join(dir, fmt.Sprintf("%03d_%s_%s.json", seq, name, suffix))
	return os.WriteFile(p, append(b, '\n'), 0o644)
}

func printOneLine(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
