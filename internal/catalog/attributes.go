package catalog

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// DefaultKeyColumn is the attribute column holding the species name.
const DefaultKeyColumn = "species"

// Attributes is a per-species attribute table loaded from CSV. The detection
// pipeline never reads it.
type Attributes struct {
	columns []string
	key     int
	rows    map[string]map[string]string
}

// LoadAttributes parses a CSV table with a header row. keyColumn names the
// column holding the species name and is matched case-insensitively; when it
// is not present the first column is used.
func LoadAttributes(r io.Reader, keyColumn string) (*Attributes, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("attribute table is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading attribute header")
	}

	if keyColumn == "" {
		keyColumn = DefaultKeyColumn
	}
	a := &Attributes{
		columns: make([]string, len(header)),
		rows:    make(map[string]map[string]string),
	}
	for i, col := range header {
		a.columns[i] = strings.TrimSpace(col)
		if strings.EqualFold(a.columns[i], keyColumn) {
			a.key = i
		}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading attribute row")
		}
		name := strings.TrimSpace(record[a.key])
		if name == "" {
			line, _ := reader.FieldPos(0)
			return nil, errors.Errorf("attribute row at line %d has no %s", line, a.columns[a.key])
		}
		row := make(map[string]string, len(record)-1)
		for i, v := range record {
			if i != a.key {
				row[a.columns[i]] = strings.TrimSpace(v)
			}
		}
		// Training tables repeat species; the first row wins.
		if _, ok := a.rows[name]; !ok {
			a.rows[name] = row
		}
	}
	return a, nil
}

// LoadAttributesFile reads an attribute table from path.
func LoadAttributesFile(path, keyColumn string) (*Attributes, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadAttributes(f, keyColumn)
}

// Columns returns the header, key column included.
func (a *Attributes) Columns() []string {
	out := make([]string, len(a.columns))
	copy(out, a.columns)
	return out
}

// Len returns the number of distinct species in the table.
func (a *Attributes) Len() int {
	return len(a.rows)
}

// Lookup returns the attributes recorded for name.
func (a *Attributes) Lookup(name string) (map[string]string, bool) {
	row, ok := a.rows[name]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out, true
}
