// Package zip bundles campaign assets into a single downloadable archive.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"
)

// Entry is one file in the archive.
type Entry struct {
	Name     string
	Data     []byte
	Modified time.Time
}

// Archive writes entries into a zip and returns its bytes. Duplicate names get
// a numeric suffix before the extension.
func Archive(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	used := map[string]int{}
	for _, e := range entries {
		name := uniqueName(used, cleanName(e.Name))
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: e.Modified}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}

func cleanName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = path.Clean("/" + name)
	name = strings.TrimPrefix(name, "/")
	if name == "" || name == "." {
		return "file"
	}
	return name
}

func uniqueName(used map[string]int, name string) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
}
