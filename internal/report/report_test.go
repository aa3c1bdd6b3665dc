package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flarebyte/lambundle/internal/archive"
	"github.com/flarebyte/lambundle/internal/deploy"
)

func sample() Report {
	return Report{
		Entry:        "lib/single-file.js",
		Handler:      "single-file.handler",
		Stages:       []string{"normalize-config", "bundle", "package"},
		BundleBytes:  120,
		Inputs:       []string{"single-file.js"},
		ArchiveBytes: 200,
		Entries:      []archive.EntryInfo{{Name: "single-file.js", Size: 120, CRC32: 42}},
	}
}

func TestMarshal_Canonical(t *testing.T) {
	b1, err := Marshal(sample())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b2, err := Marshal(sample())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("not rewrite-stable")
	}
	want := "archive:\n" +
		"  bytes: 200\n" +
		"  entries:\n" +
		"    - crc32: 42\n" +
		"      name: single-file.js\n" +
		"      size: 120\n" +
		"bundle:\n" +
		"  bytes: 120\n" +
		"  inputs:\n" +
		"    - single-file.js\n" +
		"entry: lib/single-file.js\n" +
		"handler: single-file.handler\n" +
		"stages:\n" +
		"  - normalize-config\n" +
		"  - bundle\n" +
		"  - package\n"
	if string(b1) != want {
		t.Fatalf("unexpected output\nwant:\n%s\ngot:\n%s", want, string(b1))
	}
}

func TestWrite_WithFunction(t *testing.T) {
	r := sample()
	r.Function = &deploy.FunctionMetadata{FunctionName: "fn", Handler: "single-file.handler", MemorySize: 128}
	r.OutputPath = "/tmp/out.zip"
	p := filepath.Join(t.TempDir(), "reports", "build.yaml")
	if err := Write(p, r); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	s := string(b)
	for _, want := range []string{"function:\n", "  functionName: fn\n", "  memorySize: 128\n", "output: /tmp/out.zip\n"} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in\n%s", want, s)
		}
	}
}
