package stage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/flarebyte/lambundle/internal/archive"
	"github.com/flarebyte/lambundle/internal/config"
	"github.com/flarebyte/lambundle/internal/deploy"
	"github.com/flarebyte/lambundle/internal/install"
)

const handlerSource = "'use strict';\n\n// handler comment\nexports.handler = function (event, context, callback) {\n  callback(null, 'ok');\n};\n"

// writeTree creates files (relative name → content) under a fresh temp dir.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	d := t.TempDir()
	for name, content := range files {
		p := filepath.Join(d, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return d
}

func baseRaw(dir string) map[string]any {
	return map[string]any{
		"entry":  filepath.Join(dir, "h.js"),
		"export": "handler",
	}
}

func entryNames(t *testing.T, data []byte) []string {
	t.Helper()
	infos, err := archive.Inspect(data)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	out := make([]string, 0, len(infos))
	for _, e := range infos {
		out = append(out, e.Name)
	}
	return out
}

type fakeInstaller struct {
	dir   string
	err   error
	specs []config.InstallSpec
}

func (f *fakeInstaller) Install(_ context.Context, spec config.InstallSpec) (install.Result, error) {
	f.specs = append(f.specs, spec)
	if f.err != nil {
		return install.Result{}, f.err
	}
	return install.Result{Dir: f.dir, ModulesDir: filepath.Join(f.dir, "node_modules")}, nil
}

type fakeLambda struct {
	calls     []string
	createIn  *lambda.CreateFunctionInput
	deleteErr error
	createErr error
}

func (f *fakeLambda) CreateFunction(_ context.Context, in *lambda.CreateFunctionInput, _ ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error) {
	f.calls = append(f.calls, "create")
	f.createIn = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &lambda.CreateFunctionOutput{
		FunctionName: in.FunctionName,
		FunctionArn:  aws.String("arn:aws:lambda:eu-west-1:123456789012:function:" + aws.ToString(in.FunctionName)),
		Handler:      in.Handler,
		Runtime:      in.Runtime,
		CodeSize:     int64(len(in.Code.ZipFile)),
	}, nil
}

func (f *fakeLambda) DeleteFunction(_ context.Context, _ *lambda.DeleteFunctionInput, _ ...func(*lambda.Options)) (*lambda.DeleteFunctionOutput, error) {
	f.calls = append(f.calls, "delete")
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &lambda.DeleteFunctionOutput{}, nil
}

func lambdaDeps(f *fakeLambda) Deps {
	return Deps{
		NewLambdaClient: func(context.Context, config.RemoteConfig) (deploy.LambdaAPI, error) { return f, nil },
		Describe:        func(string) string { return "" },
	}
}
