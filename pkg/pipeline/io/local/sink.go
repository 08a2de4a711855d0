package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hlrcheck/hlr-batch/internal/hlr"
)

// FileSink rewrites one output CSV file on every Store call.
//
// Writes go to a temporary file in the same directory which is then renamed
// over the target, so the file on disk is always a complete table.
type FileSink struct {
	Path string
}

func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

func (s *FileSink) Store(_ context.Context, records []hlr.OutputRecord) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := WriteOutputCSV(tmp, records); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write output csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp output: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("replace output: %w", err)
	}
	return nil
}
