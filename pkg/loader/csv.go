package loader

import (
	"encoding/csv"
	"fmt"
	"os"
)

// readCSVRows reads an entire CSV export into memory.
func (l *Loader) readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided export paths are expected
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = l.delimiter
	r.FieldsPerRecord = -1 // exports sometimes pad or truncate trailing cells
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}
	return rows, nil
}
