package crop

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
)

// table is a header-indexed view over a CSV dataset.
type table struct {
	columns map[string]int
	rows    [][]string
}

// openTable opens path and parses it. A missing file yields (nil, nil) so the
// caller can fall back to an empty dataset.
func openTable(path string, required []string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("INFO: dataset %s not found; continuing with an empty table", path)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrCatalogLoad, err)
	}
	defer f.Close()

	return readTable(f, required)
}

func readTable(r io.Reader, required []string) (*table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty source, no header row", ErrCatalogLoad)
		}
		return nil, fmt.Errorf("%w: read header: %v", ErrCatalogLoad, err)
	}

	t := &table{columns: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		// Spreadsheet exports add index columns named "Unnamed: 0".
		if name == "" || strings.HasPrefix(name, "Unnamed") {
			continue
		}
		t.columns[name] = i
	}

	var missing []string
	for _, col := range required {
		if _, ok := t.columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns: %s", ErrCatalogLoad, strings.Join(missing, ", "))
	}

	cr.FieldsPerRecord = len(header)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCatalogLoad, err)
		}
		t.rows = append(t.rows, row)
	}

	return t, nil
}

// rowReader extracts typed cells from one row and remembers the first error.
type rowReader struct {
	t   *table
	row []string
	n   int
	err error
}

func (t *table) row(i int) *rowReader {
	return &rowReader{t: t, row: t.rows[i], n: i + 1}
}

func (r *rowReader) str(col string) string {
	i, ok := r.t.columns[col]
	if !ok {
		return ""
	}
	return strings.TrimSpace(r.row[i])
}

func (r *rowReader) float(col string) float64 {
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(r.str(col), 64)
	if err != nil {
		r.err = fmt.Errorf("%w: row %d column %s: %q is not a number", ErrCatalogLoad, r.n, col, r.str(col))
		return 0
	}
	return v
}

// month accepts "5" as well as "5.0", which is how numeric columns with
// gaps come out of pandas exports.
func (r *rowReader) month(col string) int {
	v := r.float(col)
	if r.err != nil {
		return 0
	}
	if v != float64(int(v)) {
		r.err = fmt.Errorf("%w: row %d column %s: %q is not a whole month", ErrCatalogLoad, r.n, col, r.str(col))
		return 0
	}
	return int(v)
}

func (r *rowReader) tolerance(prefix string) Tolerance {
	return Tolerance{
		Optimal: Range{
			Min: r.float(prefix + "_Optimal_Min"),
			Max: r.float(prefix + "_Optimal_Max"),
		},
		Absolute: Range{
			Min: r.float(prefix + "_Absolute_Min"),
			Max: r.float(prefix + "_Absolute_Max"),
		},
	}
}
