package version

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/flarebyte/lambundle/internal/buildinfo"
)

func withFlags(t *testing.T, short, asJSON bool) {
	t.Helper()
	oldVersion, oldCommit, oldDate := buildinfo.Version, buildinfo.Commit, buildinfo.Date
	oldShort, oldJSON := flagShort, flagJSON
	t.Cleanup(func() {
		buildinfo.Version, buildinfo.Commit, buildinfo.Date = oldVersion, oldCommit, oldDate
		flagShort, flagJSON = oldShort, oldJSON
		VersionCmd.SetOut(nil)
		VersionCmd.SetErr(nil)
	})
	buildinfo.Version = ""
	buildinfo.Commit = ""
	buildinfo.Date = ""
	flagShort = short
	flagJSON = asJSON
}

func TestVersionDefaultOutputStable(t *testing.T) {
	withFlags(t, false, false)
	var out bytes.Buffer
	VersionCmd.SetOut(&out)
	if err := VersionCmd.RunE(VersionCmd, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.String() != "lambundle dev\n" {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestVersionJSON(t *testing.T) {
	withFlags(t, false, true)
	buildinfo.Version = "1.2.3"
	var out, errOut bytes.Buffer
	VersionCmd.SetOut(&out)
	VersionCmd.SetErr(&errOut)
	if err := VersionCmd.RunE(VersionCmd, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["version"] != "1.2.3" {
		t.Fatalf("version: %v", got["version"])
	}
	if errOut.String() != "lambundle version: 1.2.3\n" {
		t.Fatalf("stderr: %q", errOut.String())
	}
}
