package export

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// ArchiveContentType is the content type of uploaded archives.
const ArchiveContentType = "application/zip"

// fileStorage stores objects and hands out download links.
type fileStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader, size int64, contentType string) (string, error)
	Link(ctx context.Context, path string) (string, error)
}

// Upload describes an archive stored in object storage.
type Upload struct {
	Path string `json:"path"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Exporter uploads archives with retries.
type Exporter struct {
	storage  fileStorage
	strategy retry.Strategy
	subdir   string
}

// NewExporter creates an Exporter writing below subdir.
func NewExporter(fs fileStorage, s retry.Strategy, subdir string) *Exporter {
	return &Exporter{storage: fs, strategy: s, subdir: subdir}
}

// Upload archives entries and stores the archive under a unique name
// derived from name.
func (e *Exporter) Upload(ctx context.Context, name string, entries []Entry) (Upload, error) {
	data, err := Archive(entries)
	if err != nil {
		return Upload{}, fmt.Errorf("export: %w", err)
	}

	filename := fmt.Sprintf("%s-%s.zip", name, uuid.NewString())

	var dst string
	err = retry.Do(func() error {
		var saveErr error
		dst, saveErr = e.storage.Save(ctx, e.subdir, filename, bytes.NewReader(data), int64(len(data)), ArchiveContentType)
		return saveErr
	}, e.strategy)
	if err != nil {
		return Upload{}, fmt.Errorf("export: failed to upload archive: %w", err)
	}

	link, err := e.storage.Link(ctx, dst)
	if err != nil {
		// the archive is stored, the caller can still fetch it by path
		zlog.Logger.Warn().Err(err).Str("path", dst).Msg("failed to create download link")
	}

	zlog.Logger.Info().
		Str("path", dst).
		Int("files", len(entries)).
		Int("size", len(data)).
		Msg("archive exported")

	return Upload{Path: dst, URL: link, Size: int64(len(data))}, nil
}
