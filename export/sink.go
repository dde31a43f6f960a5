package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"tender-scraper/models"

	"go.uber.org/zap"
)

// FileSink writes every batch to the configured file formats.
type FileSink struct {
	dir     string
	prefix  string
	formats []string
	logger  *zap.Logger

	mu    sync.Mutex
	files []string
}

// NewFileSink creates a FileSink writing into dir
func NewFileSink(dir, prefix string, formats []string, logger *zap.Logger) *FileSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSink{dir: dir, prefix: prefix, formats: formats, logger: logger}
}

// Name identifies the sink in logs
func (s *FileSink) Name() string { return "files" }

// Write implements the sink contract
func (s *FileSink) Write(ctx context.Context, batch *models.Batch) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	for _, format := range s.formats {
		if err := ctx.Err(); err != nil {
			return err
		}

		path, fn := s.target(format, batch)
		if fn == nil {
			return fmt.Errorf("unknown output format %q", format)
		}
		if err := writeFile(path, fn); err != nil {
			return err
		}
		s.logger.Info("wrote output file", zap.String("format", format), zap.String("path", path), zap.Int("records", len(batch.Records)))
		written = append(written, path)
	}

	s.mu.Lock()
	s.files = append(s.files, written...)
	s.mu.Unlock()
	return nil
}

func (s *FileSink) target(format string, batch *models.Batch) (string, func(io.Writer) error) {
	at := batch.ScrapedAt
	switch format {
	case FormatJSON:
		return FileName(s.dir, s.prefix, at, "json"), func(w io.Writer) error { return WriteJSON(w, batch.Records) }
	case FormatCSV:
		return FileName(s.dir, s.prefix, at, "csv"), func(w io.Writer) error { return WriteCSV(w, batch.Records) }
	case FormatXLSX:
		return FileName(s.dir, s.prefix, at, "xlsx"), func(w io.Writer) error { return WriteXLSX(w, batch.Records) }
	case FormatSummary:
		return FileName(s.dir, s.prefix+"_summary", at, "txt"), func(w io.Writer) error { return WriteSummary(w, batch) }
	}
	return "", nil
}

// Files returns every path written so far
func (s *FileSink) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.files))
	copy(out, s.files)
	return out
}
