// Package export writes datasets as CSV files bundled into a ZIP archive.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"arboreal/harvest/internal/table"
)

// WriteCSV writes t with a header row. A table without columns produces an
// empty file.
func WriteCSV(w io.Writer, t *table.Table) error {
	if t == nil || len(t.Columns) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			s, err := FormatValue(row[col])
			if err != nil {
				return fmt.Errorf("column %s: %w", col, err)
			}
			record[i] = s
		}
		// A lone empty field would be a blank line, which readers skip.
		if len(record) == 1 && record[0] == "" {
			cw.Flush()
			if err := cw.Error(); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "\"\"\n"); err != nil {
				return err
			}
			continue
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatValue renders one cell. Missing values are empty, integral floats keep
// a trailing ".0" and booleans are capitalized, matching what analysts get
// from pandas exports of the same data.
func FormatValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		if x {
			return "True", nil
		}
		return "False", nil
	case float64:
		return formatFloat(x), nil
	case float32:
		return formatFloat(float64(x)), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case *table.Record, []any, map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return fmt.Sprint(x), nil
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ReadCSV parses a file written by WriteCSV. Every cell comes back as a
// string; an empty file is a table without columns.
func ReadCSV(r io.Reader) (*table.Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return table.New(), nil
	}
	t := table.New(records[0]...)
	for _, rec := range records[1:] {
		row := make(table.Row, len(rec))
		for i, v := range rec {
			row[t.Columns[i]] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
