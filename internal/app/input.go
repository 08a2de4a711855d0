package app

import (
	"fmt"
	"os"

	"github.com/hlrcheck/hlr-batch/internal/hlr"
	localio "github.com/hlrcheck/hlr-batch/pkg/pipeline/io/local"
	"github.com/hlrcheck/hlr-batch/pkg/pipeline/schema"
)

func readInput(path string, mode schema.InputMode) ([]hlr.InputRow, schema.InputMode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		_ = f.Close()
	}()

	rows, resolved, err := localio.ReadInputRows(f, mode)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	return rows, resolved, nil
}
