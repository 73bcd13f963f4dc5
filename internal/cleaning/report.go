package cleaning

import "github.com/KaramelBytes/datatidy-cli/internal/dataset"

// Step names a cleaning stage in the operation log.
type Step string

const (
	StepDropRows   Step = "drop_rows"
	StepDedup      Step = "dedup"
	StepImpute     Step = "impute"
	StepNormalize  Step = "normalize"
	StepCoerce     Step = "coerce"
	StepReimpute   Step = "reimpute"
	StepFinalDedup Step = "final_dedup"
)

// Operation is one entry of the ordered operation log. Cells counts the rows
// or cells the operation touched.
type Operation struct {
	Step   Step   `json:"step"`
	Column string `json:"column,omitempty"`
	Detail string `json:"detail"`
	Cells  int    `json:"cells"`
}

// CellRef locates a cell in the cleaned dataset.
type CellRef struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// ColumnDelta compares one column before and after cleaning.
type ColumnDelta struct {
	Name          string       `json:"name"`
	KindBefore    dataset.Kind `json:"kind_before"`
	KindAfter     dataset.Kind `json:"kind_after"`
	MissingBefore int          `json:"missing_before"`
	MissingAfter  int          `json:"missing_after"`
	Imputed       int          `json:"imputed"`
}

// Report is the before/after record of a Clean call.
type Report struct {
	RowsBefore        int           `json:"rows_before"`
	RowsAfter         int           `json:"rows_after"`
	ColumnsBefore     int           `json:"columns_before"`
	ColumnsAfter      int           `json:"columns_after"`
	MissingBefore     int           `json:"missing_before"`
	MissingAfter      int           `json:"missing_after"`
	RowsDropped       int           `json:"rows_dropped"`
	DuplicatesRemoved int           `json:"duplicates_removed"`
	Columns           []ColumnDelta `json:"columns"`
	Operations        []Operation   `json:"operations"`
	Unresolved        []CellRef     `json:"unresolved,omitempty"`
	UnresolvedColumns []string      `json:"unresolved_columns,omitempty"`
}

// ImputedTotal sums imputed cells over all columns.
func (r *Report) ImputedTotal() int {
	n := 0
	for _, c := range r.Columns {
		n += c.Imputed
	}
	return n
}

// Column returns the delta for the named column.
func (r *Report) Column(name string) (ColumnDelta, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDelta{}, false
}
