package output

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sdejongh/fwdiffer/pkg/models"
)

// Render formats r into memory
func Render(f Formatter, r *models.DiffResult) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Format(&buf, r); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteReport writes a rendered report to path, creating parent directories
func WriteReport(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
