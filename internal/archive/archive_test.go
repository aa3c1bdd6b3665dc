package archive

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flarebyte/lambundle/internal/config"
)

func readAll(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = b
	}
	return out
}

func names(t *testing.T, data []byte) []string {
	t.Helper()
	entries, err := Inspect(data)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestBuild_BundleOnly(t *testing.T) {
	data, err := Build("single-file.js", []byte("exports.handler=1"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"single-file.js"}, names(t, data))
	assert.Equal(t, "exports.handler=1", string(readAll(t, data)["single-file.js"]))
}

func TestBuild_PathAndObjectFiles(t *testing.T) {
	files := []config.ExtraFile{
		{Path: filepath.Join("testdata", "file1.txt")},
		{Path: filepath.Join("testdata", "file2.txt")},
		{Name: "conf/settings.json", Data: []byte(`{"a":1}`)},
	}
	data, err := Build("index.js", []byte("x"), files, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"index.js", "file1.txt", "file2.txt", "conf/settings.json"}, names(t, data))

	got := readAll(t, data)
	for _, n := range []string{"file1.txt", "file2.txt"} {
		want, err := os.ReadFile(filepath.Join("testdata", n))
		require.NoError(t, err)
		assert.Equal(t, want, got[n])
	}
	assert.Equal(t, `{"a":1}`, string(got["conf/settings.json"]))
}

func TestBuild_Directory(t *testing.T) {
	data, err := Build("index.js", []byte("x"), []config.ExtraFile{{Path: filepath.Join("testdata", "assets")}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"index.js",
		"assets/",
		"assets/a.txt",
		"assets/b.map",
		"assets/nested/",
		"assets/nested/c.txt",
	}, names(t, data))
	assert.Equal(t, "c\n", string(readAll(t, data)["assets/nested/c.txt"]))
}

type suffixFilter string

func (s suffixFilter) Keep(name string) (bool, error) {
	return !strings.HasSuffix(name, string(s)), nil
}

type failingFilter struct{}

func (failingFilter) Keep(string) (bool, error) { return false, errors.New("boom") }

func TestBuild_FilterAppliesToDirectoryDescendants(t *testing.T) {
	files := []config.ExtraFile{
		{Path: filepath.Join("testdata", "assets")},
		{Name: "top.map", Data: []byte("kept")},
	}
	data, err := Build("index.js", []byte("x"), files, suffixFilter(".map"))
	require.NoError(t, err)
	got := names(t, data)
	assert.NotContains(t, got, "assets/b.map")
	assert.Contains(t, got, "assets/a.txt")
	assert.Contains(t, got, "top.map")

	data, err = Build("index.js", []byte("x"), []config.ExtraFile{{Path: filepath.Join("testdata", "assets")}}, suffixFilter("nested/"))
	require.NoError(t, err)
	assert.NotContains(t, names(t, data), "assets/nested/c.txt")

	_, err = Build("index.js", []byte("x"), []config.ExtraFile{{Path: filepath.Join("testdata", "assets")}}, failingFilter{})
	assert.ErrorContains(t, err, "boom")
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build("index.js", []byte("x"), []config.ExtraFile{{Path: filepath.Join("testdata", "missing.txt")}}, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Build("index.js", []byte("x"), []config.ExtraFile{{Name: "index.js", Data: []byte("y")}}, nil)
	assert.ErrorContains(t, err, "duplicate archive entry")

	for _, name := range []string{"/etc/evil", "../up", "a/../../up", "C:/windows/evil", ".."} {
		_, err = Build("index.js", []byte("x"), []config.ExtraFile{{Name: name, Data: []byte("y")}}, nil)
		assert.ErrorIs(t, err, ErrUnsafeName, name)
	}
	_, err = Build("index.js", []byte("x"), []config.ExtraFile{{Name: "a/../b.txt", Data: []byte("y")}}, nil)
	assert.NoError(t, err)
}

func TestBuild_Deterministic(t *testing.T) {
	files := []config.ExtraFile{{Path: filepath.Join("testdata", "assets")}}
	a, err := Build("index.js", []byte("x"), files, nil)
	require.NoError(t, err)
	b, err := Build("index.js", []byte("x"), files, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
