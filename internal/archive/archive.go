// Package archive writes the deployment zip: the bundled handler first, then
// any extra files in configuration order.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/flarebyte/lambundle/internal/config"
)

// Filter decides whether a file found below a directory entry is packaged.
// name is the archive entry name.
type Filter interface {
	Keep(name string) (bool, error)
}

// EntryInfo describes one archive member.
type EntryInfo struct {
	Name  string
	Size  uint64
	CRC32 uint32
	Dir   bool
}

// Entries are stamped with a fixed time so that equal inputs give equal archives.
var modTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

type writer struct {
	zw     *zip.Writer
	filter Filter
	seen   map[string]bool
}

// Build returns the zip bytes for the bundle and the extra files. filter may be nil.
func Build(bundleName string, bundle []byte, files []config.ExtraFile, filter Filter) ([]byte, error) {
	var buf bytes.Buffer
	w := &writer{zw: zip.NewWriter(&buf), filter: filter, seen: map[string]bool{}}

	if err := w.addBytes(bundleName, bundle, 0o644); err != nil {
		return nil, err
	}
	for _, f := range files {
		var err error
		if f.IsPath() {
			err = w.addPath(f.Path)
		} else {
			err = w.addBytes(f.Name, f.Data, 0o644)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := w.zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// ErrUnsafeName is returned for entry names that are absolute or climb out of
// the archive root.
var ErrUnsafeName = errors.New("archive entry name must be relative to the archive root")

func (w *writer) claim(name string) error {
	if name == "" || name == "/" {
		return errors.New("archive entry name must not be empty")
	}
	if !isRelativeName(name) {
		return fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	if w.seen[name] {
		return fmt.Errorf("duplicate archive entry %q", name)
	}
	w.seen[name] = true
	return nil
}

func isRelativeName(name string) bool {
	if strings.HasPrefix(name, "/") || filepath.VolumeName(name) != "" {
		return false
	}
	if len(name) >= 2 && name[1] == ':' {
		return false
	}
	clean := path.Clean(strings.TrimSuffix(name, "/"))
	return clean != ".." && !strings.HasPrefix(clean, "../")
}

func (w *writer) addBytes(name string, data []byte, mode fs.FileMode) error {
	name = filepath.ToSlash(name)
	if err := w.claim(name); err != nil {
		return err
	}
	header := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modTime}
	header.SetMode(mode)
	out, err := w.zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create archive entry %s: %w", name, err)
	}
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	return nil
}

func (w *writer) addDir(name string) error {
	if err := w.claim(name); err != nil {
		return err
	}
	header := &zip.FileHeader{Name: name, Method: zip.Store, Modified: modTime}
	header.SetMode(fs.ModeDir | 0o755)
	_, err := w.zw.CreateHeader(header)
	return err
}

// addPath adds a file under its base name, or a directory as "<base>/" plus
// all of its descendants.
func (w *writer) addPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	base := filepath.Base(path)
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return w.addBytes(base, data, info.Mode().Perm())
	}

	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		name := base
		if rel != "." {
			name = base + "/" + filepath.ToSlash(rel)
		}
		if d.IsDir() {
			if rel != "." {
				keep, err := w.keep(name + "/")
				if err != nil {
					return err
				}
				if !keep {
					return fs.SkipDir
				}
			}
			return w.addDir(name + "/")
		}

		keep, err := w.keep(name)
		if err != nil || !keep {
			return err
		}
		fi, err := os.Stat(p)
		if err != nil {
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			return err
		}
		if fi.IsDir() {
			// symlinked directories are not followed
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return w.addBytes(name, data, fi.Mode().Perm())
	})
}

func (w *writer) keep(name string) (bool, error) {
	if w.filter == nil {
		return true, nil
	}
	keep, err := w.filter.Keep(name)
	if err != nil {
		return false, fmt.Errorf("filter %s: %w", name, err)
	}
	return keep, nil
}

// Inspect lists the members of a zip archive in order.
func Inspect(data []byte) ([]EntryInfo, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	out := make([]EntryInfo, 0, len(zr.File))
	for _, f := range zr.File {
		out = append(out, EntryInfo{
			Name:  f.Name,
			Size:  f.UncompressedSize64,
			CRC32: f.CRC32,
			Dir:   strings.HasSuffix(f.Name, "/"),
		})
	}
	return out, nil
}
