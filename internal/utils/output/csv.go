package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/law-makers/pricecrawl/pkg/models"
)

var metaColumns = []string{"url", "source", "scrapedAt"}

// WriteRecordsCSV writes one row per record. Columns are the metadata
// followed by the union of field names, sorted.
func WriteRecordsCSV(w io.Writer, records []*models.ProductRecord) error {
	return writeCSV(w, nil, records, func(int) []string { return nil })
}

// WriteBatchCSV writes the records of every successful page with a leading
// page column.
func WriteBatchCSV(w io.Writer, batch *models.BatchResult) error {
	var records []*models.ProductRecord
	var pages []string
	for _, o := range batch.Outcomes {
		if o.Failed() {
			continue
		}
		for _, r := range o.Records {
			records = append(records, r)
			pages = append(pages, strconv.Itoa(o.Page))
		}
	}
	return writeCSV(w, []string{"page"}, records, func(i int) []string { return []string{pages[i]} })
}

func writeCSV(w io.Writer, lead []string, records []*models.ProductRecord, leadRow func(int) []string) error {
	seen := make(map[string]bool)
	var fields []string
	for _, r := range records {
		for k := range r.Fields {
			if !seen[k] {
				seen[k] = true
				fields = append(fields, k)
			}
		}
	}
	sort.Strings(fields)

	writer := csv.NewWriter(w)

	header := append(append(append([]string(nil), lead...), metaColumns...), fields...)
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, r := range records {
		row := append([]string(nil), leadRow(i)...)
		row = append(row, r.URL, r.Source, r.ScrapedAt.Format(time.RFC3339))
		for _, f := range fields {
			cell, err := cellValue(r.Fields[f])
			if err != nil {
				return fmt.Errorf("field %s: %w", f, err)
			}
			row = append(row, cell)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// cellValue renders scalars as text and anything nested as JSON
func cellValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
