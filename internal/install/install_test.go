package install

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/testcontainers/testcontainers-go"

	"github.com/flarebyte/lambundle/internal/config"
	"github.com/flarebyte/lambundle/internal/container"
)

type fakeEngine struct {
	runs        []container.RunOptions
	exitCode    int
	stderr      string
	makeModules bool
}

func (f *fakeEngine) Name() string                            { return "fake" }
func (f *fakeEngine) Available() bool                         { return true }
func (f *fakeEngine) Version(context.Context) (string, error) { return "0", nil }
func (f *fakeEngine) Run(_ context.Context, opts container.RunOptions) (*container.RunResult, error) {
	f.runs = append(f.runs, opts)
	if f.makeModules {
		host := strings.SplitN(opts.Volumes[1], ":", 2)[0]
		if err := os.MkdirAll(filepath.Join(host, "node_modules", "left-pad"), 0o755); err != nil {
			return nil, err
		}
	}
	return &container.RunResult{ExitCode: f.exitCode, Stderr: f.stderr}, nil
}

func writeManifest(t *testing.T) string {
	t.Helper()
	d := t.TempDir()
	p := filepath.Join(d, "package.json")
	if err := os.WriteFile(p, []byte(`{"dependencies":{}}`), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return p
}

func newInstaller(t *testing.T, e container.Engine) *ContainerInstaller {
	return &ContainerInstaller{
		NewEngine: func(string) (container.Engine, error) { return e, nil },
		TempDir:   t.TempDir(),
	}
}

func spec(manifest string) config.InstallSpec {
	return config.InstallSpec{
		Manifest: manifest,
		Image:    "public.ecr.aws/sam/build-nodejs20.x",
		Engine:   "auto",
		Command:  []string{"npm", "install", "--omit=dev"},
	}
}

func TestInstall_Success(t *testing.T) {
	e := &fakeEngine{makeModules: true}
	manifest := writeManifest(t)
	res, err := newInstaller(t, e).Install(context.Background(), spec(manifest))
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if filepath.Base(res.ModulesDir) != "node_modules" || filepath.Dir(res.ModulesDir) != res.Dir {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.HasPrefix(filepath.Base(res.Dir), "lambundle-install-") {
		t.Fatalf("unexpected target name: %s", res.Dir)
	}
	if len(e.runs) != 1 {
		t.Fatalf("expected one container run, got %d", len(e.runs))
	}
	run := e.runs[0]
	if !run.Remove || run.WorkDir != "/var/task" {
		t.Fatalf("unexpected run options: %+v", run)
	}
	if run.Volumes[0] != filepath.Dir(manifest)+":/var/manifest:ro" {
		t.Fatalf("manifest volume: %s", run.Volumes[0])
	}
	if !strings.HasSuffix(run.Command[2], "npm install --omit=dev") {
		t.Fatalf("script: %s", run.Command[2])
	}
}

func TestInstall_ExplicitTarget(t *testing.T) {
	e := &fakeEngine{makeModules: true}
	target := filepath.Join(t.TempDir(), "deps")
	s := spec(writeManifest(t))
	s.Target = target
	res, err := newInstaller(t, e).Install(context.Background(), s)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if res.Dir != target {
		t.Fatalf("target: %s", res.Dir)
	}
}

func TestInstall_NonZeroExit(t *testing.T) {
	e := &fakeEngine{exitCode: 1, stderr: "npm ERR! 404"}
	_, err := newInstaller(t, e).Install(context.Background(), spec(writeManifest(t)))
	var ee *container.ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("expected container.ExitError, got %v", err)
	}
	if ee.Code != 1 || ee.Stderr != "npm ERR! 404" {
		t.Fatalf("unexpected exit error: %+v", ee)
	}
}

func TestInstall_MissingModulesDir(t *testing.T) {
	e := &fakeEngine{}
	_, err := newInstaller(t, e).Install(context.Background(), spec(writeManifest(t)))
	if !IsMissingModules(err) {
		t.Fatalf("expected missing node_modules error, got %v", err)
	}
}

func TestInstall_MissingManifest(t *testing.T) {
	e := &fakeEngine{}
	_, err := newInstaller(t, e).Install(context.Background(), spec(filepath.Join(t.TempDir(), "nope.json")))
	if err == nil || len(e.runs) != 0 {
		t.Fatalf("expected error before any container run, got %v", err)
	}
}

func TestScript_CopiesLockFile(t *testing.T) {
	manifest := writeManifest(t)
	if err := os.WriteFile(filepath.Join(filepath.Dir(manifest), "package-lock.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}
	got := Script(manifest, []string{"npm", "ci", "--omit=dev"})
	want := "cp /var/manifest/package.json /var/task/package.json && cp /var/manifest/package-lock.json /var/task/ && npm ci --omit=dev"
	if got != want {
		t.Fatalf("script\nwant: %s\n got: %s", want, got)
	}
}

func TestQuote(t *testing.T) {
	if quote("plain") != "plain" {
		t.Fatalf("plain word must not be quoted")
	}
	if got := quote("it's"); got != `'it'\''s'` {
		t.Fatalf("quote: %s", got)
	}
}

func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()
	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

func TestInstall_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping: no container provider available")
	}
	if _, err := container.AutoDetectEngine(); err != nil {
		t.Skipf("skipping: %v", err)
	}
	s := spec(writeManifest(t))
	s.Image = "node:20-alpine"
	s.Command = []string{"mkdir", "-p", "node_modules/left-pad"}
	res, err := New().Install(context.Background(), s)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if _, err := os.Stat(res.ModulesDir); err != nil {
		t.Fatalf("node_modules missing: %v", err)
	}
}
