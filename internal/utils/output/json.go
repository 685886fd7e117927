// Package output writes scrape results as JSON or CSV files.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/law-makers/pricecrawl/pkg/models"
)

// Format is an export format
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// FormatFor picks a format from an explicit name, falling back to the file
// extension and then to JSON.
func FormatFor(path, explicit string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(explicit))
	if name == "" {
		name = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch Format(name) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON, "":
		return FormatJSON, nil
	}
	if explicit == "" {
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (must be json or csv)", explicit)
}

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// SaveRecords writes records to path in the given format
func SaveRecords(path string, format Format, records []*models.ProductRecord) error {
	return save(path, func(w io.Writer) error {
		if format == FormatCSV {
			return WriteRecordsCSV(w, records)
		}
		return WriteJSON(w, records)
	})
}

// SaveBatch writes a listing run to path. CSV output has one row per record
// with the page it came from; failed pages are left out.
func SaveBatch(path string, format Format, batch *models.BatchResult) error {
	return save(path, func(w io.Writer) error {
		if format == FormatCSV {
			return WriteBatchCSV(w, batch)
		}
		return WriteJSON(w, batch)
	})
}

func save(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
