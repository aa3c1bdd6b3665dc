package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
)

const stderrCaptureMax = 64 * 1024

type (
	// ExecCommandFunc creates the exec.Cmd for an engine invocation.
	// Tests replace it to record arguments.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Option configures a cliEngine.
	Option func(*cliEngine)

	cliEngine struct {
		name        string
		binaryPath  string
		execCommand ExecCommandFunc
	}
)

// WithExecCommand sets a custom command factory.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(e *cliEngine) {
		e.execCommand = fn
	}
}

// WithBinaryPath overrides the looked-up engine binary.
func WithBinaryPath(path string) Option {
	return func(e *cliEngine) {
		e.binaryPath = path
	}
}

func newCLIEngine(name string, opts ...Option) *cliEngine {
	path, _ := exec.LookPath(name)
	e := &cliEngine{
		name:        name,
		binaryPath:  path,
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *cliEngine) Name() string { return e.name }

// Available runs "<engine> version" and reports whether it succeeded.
func (e *cliEngine) Available() bool {
	if e.binaryPath == "" {
		return false
	}
	cmd := e.execCommand(context.Background(), e.binaryPath, "version")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run() == nil
}

func (e *cliEngine) Version(ctx context.Context) (string, error) {
	var out bytes.Buffer
	cmd := e.execCommand(ctx, e.binaryPath, "version", "--format", "{{.Client.Version}}")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to get %s version: %w", e.name, err)
	}
	return strings.TrimSpace(out.String()), nil
}

// RunArgs constructs arguments for a container run command.
//
// Generated command: <binary> run [options] <image> [command...]
func (e *cliEngine) RunArgs(opts RunOptions) []string {
	args := []string{"run"}
	if opts.Remove {
		args = append(args, "--rm")
	}
	for _, v := range opts.Volumes {
		args = append(args, "-v", v)
	}
	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}
	keys := make([]string, 0, len(opts.Env))
	for k := range opts.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, opts.Env[k]))
	}
	args = append(args, opts.Image)
	return append(args, opts.Command...)
}

func (e *cliEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if opts.Image == "" {
		return nil, errors.New("container image is required")
	}
	cmd := e.execCommand(ctx, e.binaryPath, e.RunArgs(opts)...)
	errBuf := &limitedBuffer{max: stderrCaptureMax}
	cmd.Stdout = opts.Stdout
	if opts.Stderr != nil {
		cmd.Stderr = io.MultiWriter(opts.Stderr, errBuf)
	} else {
		cmd.Stderr = errBuf
	}

	err := cmd.Run()
	result := &RunResult{Stderr: errBuf.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
			result.Error = err
		}
	}
	return result, nil
}

// limitedBuffer keeps the last max bytes written; package managers print
// the failure reason at the end.
type limitedBuffer struct {
	max       int
	buf       []byte
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
		b.truncated = true
	}
	return n, nil
}

func (b *limitedBuffer) String() string {
	if b.truncated {
		return "[truncated]\n" + string(b.buf)
	}
	return string(b.buf)
}
