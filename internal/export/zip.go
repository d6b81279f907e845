package export

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// Entry is one file of an archive.
type Entry struct {
	Name string
	Data []byte
}

// WriteZip writes entries as a ZIP archive to w. Image payloads are already
// compressed, so they are stored as-is. Duplicate names get a " (n)" suffix.
func WriteZip(w io.Writer, entries []Entry, modified time.Time) error {
	zw := zip.NewWriter(w)

	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		name := uniqueName(path.Base(e.Name), seen)

		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Store,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", name, err)
		}

		if _, err := f.Write(e.Data); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}

	return nil
}

// Archive returns entries as an in-memory ZIP archive.
func Archive(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteZip(&buf, entries, time.Now()); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func uniqueName(name string, seen map[string]int) string {
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}

	ext := path.Ext(name)
	candidate := fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n, ext)

	return uniqueName(candidate, seen)
}
