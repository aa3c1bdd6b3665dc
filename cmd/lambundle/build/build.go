package build

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flarebyte/lambundle/internal/archive"
	"github.com/flarebyte/lambundle/internal/config"
	"github.com/flarebyte/lambundle/internal/report"
	"github.com/flarebyte/lambundle/internal/stage"
)

// NewCmd returns the `lambundle build` command.
func NewCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "build",
		Short:         "Bundle and package the handler described by a config file",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return v.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := LoadRaw(v)
			if err != nil {
				return err
			}
			out, err := stage.Execute(cmd.Context(), raw, stage.Deps{}, "")
			if err != nil {
				return err
			}
			r, err := NewReport(out)
			if err != nil {
				return err
			}
			if p := v.GetString("report"); p != "" {
				if err := report.Write(p, r); err != nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
			}
			return writeSummary(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to config file (.cue, .json, .yaml)")
	cmd.Flags().StringP("output", "o", "", "Write the archive to this path (overrides the config)")
	cmd.Flags().String("report", "", "Write a YAML build report to this path")
	return cmd
}

// LoadRaw reads the config named by the "config" key and applies the
// "output" override.
func LoadRaw(v *viper.Viper) (map[string]any, error) {
	cfgPath := v.GetString("config")
	if cfgPath == "" {
		return nil, errors.New("missing required flag: --config")
	}
	raw, err := config.LoadFile(cfgPath)
	if err != nil {
		return nil, err
	}
	if o := v.GetString("output"); o != "" {
		abs, err := filepath.Abs(o)
		if err != nil {
			return nil, err
		}
		raw["output"] = abs
	}
	return raw, nil
}

// NewReport summarizes a completed pipeline run.
func NewReport(out stage.Envelope) (report.Report, error) {
	entries, err := archive.Inspect(out.Artifacts.Archive)
	if err != nil {
		return report.Report{}, err
	}
	cfg := out.Config
	r := report.Report{
		Entry:         cfg.Entry,
		Handler:       cfg.Handler(),
		Stages:        out.Stages,
		BundleBytes:   len(out.Artifacts.Bundle),
		Inputs:        out.Artifacts.Inputs,
		Warnings:      out.Artifacts.Warnings,
		SourceMapName: cfg.SourceMapName,
		ArchiveBytes:  len(out.Artifacts.Archive),
		Entries:       entries,
		OutputPath:    cfg.OutputPath,
		InstallDir:    out.Artifacts.InstallDir,
		Function:      out.Artifacts.Function,
	}
	if out.Artifacts.SourceMap != nil {
		r.SourceMapBytes = len(*out.Artifacts.SourceMap)
	}
	return r, nil
}

// writeSummary prints a single JSON line.
func writeSummary(w io.Writer, out stage.Envelope) error {
	s := map[string]any{
		"ok":           true,
		"handler":      out.Config.Handler(),
		"archiveBytes": len(out.Artifacts.Archive),
	}
	if out.Config.OutputPath != "" {
		s["output"] = out.Config.OutputPath
	}
	if fn := out.Artifacts.Function; fn != nil {
		s["functionArn"] = fn.FunctionArn
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(s)
}
