package dataset

import (
	"fmt"
	"strings"
)

// Kind is the semantic type of a column.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
	KindText        Kind = "text"
	KindDatetime    Kind = "datetime"
	KindBoolean     Kind = "boolean"
)

// Textual reports whether values of this kind are imputed with the mode and
// normalized as strings.
func (k Kind) Textual() bool { return k == KindCategorical || k == KindText }

// Cell is a single value. A missing cell carries no value.
type Cell struct {
	Value   string
	Missing bool
}

// Null is the explicit missing marker.
var Null = Cell{Missing: true}

// Value wraps a concrete string.
func Value(s string) Cell { return Cell{Value: s} }

// Column is a named, typed sequence of cells.
type Column struct {
	Name  string
	Kind  Kind
	Cells []Cell
}

// MissingCount counts missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for _, cell := range c.Cells {
		if cell.Missing {
			n++
		}
	}
	return n
}

// Present returns the non-missing values in column order.
func (c *Column) Present() []string {
	out := make([]string, 0, len(c.Cells))
	for _, cell := range c.Cells {
		if !cell.Missing {
			out = append(out, cell.Value)
		}
	}
	return out
}

// Dataset is an ordered set of equally long columns. A Dataset belongs to one
// pipeline run; use Clone before handing it to code that mutates.
type Dataset struct {
	Name    string
	Columns []Column
}

// NumRows returns the shared row count (0 for a dataset without columns).
func (d *Dataset) NumRows() int {
	if d == nil || len(d.Columns) == 0 {
		return 0
	}
	return len(d.Columns[0].Cells)
}

// NumCols returns the column count.
func (d *Dataset) NumCols() int {
	if d == nil {
		return 0
	}
	return len(d.Columns)
}

// ColumnNames lists column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i := range d.Columns {
		names[i] = d.Columns[i].Name
	}
	return names
}

// Index returns the position of the named column or -1.
func (d *Dataset) Index(name string) int {
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return i
		}
	}
	return -1
}

// Column returns the named column or nil.
func (d *Dataset) Column(name string) *Column {
	if i := d.Index(name); i >= 0 {
		return &d.Columns[i]
	}
	return nil
}

// Row returns the cells of row i across all columns.
func (d *Dataset) Row(i int) []Cell {
	row := make([]Cell, len(d.Columns))
	for j := range d.Columns {
		row[j] = d.Columns[j].Cells[i]
	}
	return row
}

// RowMissing counts missing cells in row i.
func (d *Dataset) RowMissing(i int) int {
	n := 0
	for j := range d.Columns {
		if d.Columns[j].Cells[i].Missing {
			n++
		}
	}
	return n
}

// MissingCount totals missing cells over the dataset.
func (d *Dataset) MissingCount() int {
	n := 0
	for j := range d.Columns {
		n += d.Columns[j].MissingCount()
	}
	return n
}

// RowKey encodes row i so that two rows share a key exactly when every cell
// matches, with missing distinct from the empty string.
func (d *Dataset) RowKey(i int) string {
	var b strings.Builder
	for j := range d.Columns {
		c := d.Columns[j].Cells[i]
		if j > 0 {
			b.WriteByte(0x1f)
		}
		if c.Missing {
			b.WriteByte(0x00)
			continue
		}
		b.WriteByte(0x01)
		b.WriteString(c.Value)
	}
	return b.String()
}

// DuplicateCount counts rows that repeat an earlier row.
func (d *Dataset) DuplicateCount() int {
	seen := make(map[string]struct{}, d.NumRows())
	dups := 0
	for i := 0; i < d.NumRows(); i++ {
		k := d.RowKey(i)
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}

// KeepRows retains rows whose keep flag is set, preserving order.
func (d *Dataset) KeepRows(keep []bool) {
	for j := range d.Columns {
		src := d.Columns[j].Cells
		dst := src[:0]
		for i, c := range src {
			if keep[i] {
				dst = append(dst, c)
			}
		}
		d.Columns[j].Cells = dst
	}
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	out := &Dataset{Name: d.Name, Columns: make([]Column, len(d.Columns))}
	for j, c := range d.Columns {
		cells := make([]Cell, len(c.Cells))
		copy(cells, c.Cells)
		out.Columns[j] = Column{Name: c.Name, Kind: c.Kind, Cells: cells}
	}
	return out
}

// Records renders the rows as strings; missing cells become "".
func (d *Dataset) Records() [][]string {
	rows := make([][]string, d.NumRows())
	for i := range rows {
		rec := make([]string, len(d.Columns))
		for j := range d.Columns {
			rec[j] = d.Columns[j].Cells[i].Value
		}
		rows[i] = rec
	}
	return rows
}

// Validate checks the structural invariants every component relies on.
func (d *Dataset) Validate() error {
	if d == nil {
		return &InvalidDatasetError{Reason: "nil dataset"}
	}
	seen := make(map[string]struct{}, len(d.Columns))
	for j := range d.Columns {
		c := &d.Columns[j]
		if _, dup := seen[c.Name]; dup {
			return &InvalidDatasetError{Column: c.Name, Reason: "duplicate column name"}
		}
		seen[c.Name] = struct{}{}
		if len(c.Cells) != len(d.Columns[0].Cells) {
			return &InvalidDatasetError{
				Column: c.Name,
				Reason: fmt.Sprintf("has %d rows, expected %d", len(c.Cells), len(d.Columns[0].Cells)),
			}
		}
	}
	return nil
}

// FromRecords builds a dataset from a header and string rows. Header names are
// normalized, NA tokens become missing, short rows are padded with missing
// cells and every column kind is inferred. Rows longer than the header are the
// caller's responsibility to reject.
func FromRecords(name string, header []string, rows [][]string) *Dataset {
	names := NormalizeHeader(header)
	d := &Dataset{Name: name, Columns: make([]Column, len(names))}
	for j := range names {
		d.Columns[j] = Column{Name: names[j], Cells: make([]Cell, len(rows))}
	}
	for i, rec := range rows {
		for j := range names {
			if j >= len(rec) || IsMissingToken(rec[j]) {
				d.Columns[j].Cells[i] = Null
				continue
			}
			d.Columns[j].Cells[i] = Value(rec[j])
		}
	}
	d.InferKinds()
	return d
}

// InferKinds sets every column's Kind from its values.
func (d *Dataset) InferKinds() {
	for j := range d.Columns {
		d.Columns[j].Kind = InferKind(d.Columns[j].Present())
	}
}

// NormalizeHeader trims names, names blank headers "Unnamed: <i>" and
// suffixes repeats as name.1, name.2.
func NormalizeHeader(header []string) []string {
	out := make([]string, len(header))
	taken := make(map[string]struct{}, len(header))
	next := make(map[string]int, len(header))
	for i, h := range header {
		base := strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if base == "" {
			base = fmt.Sprintf("Unnamed: %d", i)
		}
		n := base
		for k := next[base]; ; k++ {
			if k > 0 {
				n = fmt.Sprintf("%s.%d", base, k)
			}
			if _, dup := taken[n]; !dup {
				next[base] = k + 1
				break
			}
		}
		taken[n] = struct{}{}
		out[i] = n
	}
	return out
}

var missingTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {},
	"null": {}, "NULL": {}, "None": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "<NA>": {},
	"1.#IND": {}, "1.#QNAN": {}, "-1.#IND": {}, "-1.#QNAN": {},
}

// IsMissingToken reports whether a raw value denotes a missing cell.
func IsMissingToken(s string) bool {
	_, ok := missingTokens[strings.TrimSpace(s)]
	return ok
}
