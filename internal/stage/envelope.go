package stage

import (
	"github.com/flarebyte/lambundle/internal/config"
	"github.com/flarebyte/lambundle/internal/deploy"
)

// Artifacts accumulates the outputs of the pipeline.
type Artifacts struct {
	Bundle     []byte
	SourceMap  *string
	Inputs     []string
	Warnings   []string
	Archive    []byte
	InstallDir string
	Function   *deploy.FunctionMetadata
}

// Envelope is the value threaded through the stages. Raw is only read by
// normalize-config; later stages use Config.
type Envelope struct {
	Raw    map[string]any
	Config config.PipelineConfig
	// Files is the working list of extra archive entries. It starts as a copy
	// of Config.ExtraFiles and install-dependencies appends to it.
	Files     []config.ExtraFile
	Artifacts Artifacts
	// Stages lists the stages that completed, in order.
	Stages []string
}

// Snapshot is a compact, JSON-friendly view of an envelope used for dumps.
type Snapshot struct {
	Entry          string   `json:"entry,omitempty"`
	Handler        string   `json:"handler,omitempty"`
	Stages         []string `json:"stages"`
	Files          []string `json:"files,omitempty"`
	BundleBytes    int      `json:"bundleBytes"`
	SourceMapBytes int      `json:"sourceMapBytes,omitempty"`
	ArchiveBytes   int      `json:"archiveBytes"`
	InstallDir     string   `json:"installDir,omitempty"`
	FunctionArn    string   `json:"functionArn,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Snapshot summarizes the envelope without the binary payloads.
func (e Envelope) Snapshot() Snapshot {
	s := Snapshot{
		Entry:        e.Config.Entry,
		Stages:       append([]string{}, e.Stages...),
		BundleBytes:  len(e.Artifacts.Bundle),
		ArchiveBytes: len(e.Artifacts.Archive),
		InstallDir:   e.Artifacts.InstallDir,
		Warnings:     e.Artifacts.Warnings,
	}
	if e.Config.Entry != "" {
		s.Handler = e.Config.Handler()
	}
	for _, f := range e.Files {
		if f.IsPath() {
			s.Files = append(s.Files, f.Path)
		} else {
			s.Files = append(s.Files, f.Name)
		}
	}
	if e.Artifacts.SourceMap != nil {
		s.SourceMapBytes = len(*e.Artifacts.SourceMap)
	}
	if e.Artifacts.Function != nil {
		s.FunctionArn = e.Artifacts.Function.FunctionArn
	}
	return s
}
