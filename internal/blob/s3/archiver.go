package s3blob

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dwhitley/personabench/internal/domain"
)

// multipartThreshold is the local file size above which uploads switch to
// multipart (a decision-log database can grow well past a single PUT's
// comfortable size on long runs).
const multipartThreshold int64 = 64 * 1024 * 1024

// RunArchiver uploads the artifacts of a finished run (decision log database,
// exports) under a per-run prefix in object storage.
type RunArchiver struct {
	writer domain.BlobWriter
	logger *slog.Logger
}

// NewRunArchiver creates a RunArchiver.
func NewRunArchiver(writer domain.BlobWriter, logger *slog.Logger) *RunArchiver {
	return &RunArchiver{
		writer: writer,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveRun uploads each local file to runs/<runID>/<basename> and returns
// the number of artifacts stored. A missing file fails the archive; partial
// archives are worse than loud ones.
func (a *RunArchiver) ArchiveRun(ctx context.Context, runID string, paths []string) (int, error) {
	stored := 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return stored, fmt.Errorf("s3blob: stat artifact %s: %w", path, err)
		}

		f, err := os.Open(path)
		if err != nil {
			return stored, fmt.Errorf("s3blob: open artifact %s: %w", path, err)
		}

		key := "runs/" + runID + "/" + filepath.Base(path)
		if info.Size() > multipartThreshold {
			err = a.writer.PutMultipart(ctx, key, f, minPartSize)
		} else {
			err = a.writer.Put(ctx, key, f, contentTypeFor(path))
		}
		f.Close()
		if err != nil {
			return stored, err
		}

		stored++
		a.logger.Info("artifact archived",
			slog.String("run_id", runID),
			slog.String("key", key),
			slog.Int64("bytes", info.Size()),
		)
	}
	return stored, nil
}

func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".db", ".sqlite":
		return "application/vnd.sqlite3"
	default:
		return "application/octet-stream"
	}
}
