package cleaning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/datatidy-cli/internal/dataset"
	"github.com/KaramelBytes/datatidy-cli/internal/errors"
)

func clean(t *testing.T, opt Options, header []string, rows [][]string) (*dataset.Dataset, *Report) {
	t.Helper()
	in := dataset.FromRecords("in.csv", header, rows)
	out, rep, err := New(opt).Clean(in)
	require.NoError(t, err)
	require.NoError(t, out.Validate())
	return out, rep
}

func column(t *testing.T, ds *dataset.Dataset, name string) []string {
	t.Helper()
	c := ds.Column(name)
	require.NotNil(t, c, name)
	vals := make([]string, len(c.Cells))
	for i, cell := range c.Cells {
		vals[i] = cell.Value
	}
	return vals
}

func messyRows() [][]string {
	return [][]string{
		{"1", "$1,200", " new  york", "Yes", "01/15/2024", "ok"},
		{"2", "$300", "Boston", "no", "02/20/2024", ""},
		{"3", "", "boston ", "Y", "", "fine"},
		{"3", "", "boston ", "Y", "", "fine"},
		{"4", "45%", "", "", "03/05/2024", ""},
		{"5", "", "", "", "", ""},
		{"6", "n.a.", "Chicago", "FALSE", "12/01/2024", "x"},
	}
}

var messyHeader = []string{"id", "price", "city", "active", "joined", "note"}

func TestCleanMedianImputation(t *testing.T) {
	out, rep := clean(t, DefaultOptions(), []string{"id", "v"}, [][]string{
		{"1", "10"}, {"2", ""}, {"3", "10"}, {"4", "20"},
	})
	assert.Equal(t, []string{"10", "10", "10", "20"}, column(t, out, "v"))
	delta, ok := rep.Column("v")
	require.True(t, ok)
	assert.Equal(t, 1, delta.MissingBefore)
	assert.Equal(t, 0, delta.MissingAfter)
	assert.Equal(t, 1, delta.Imputed)
	assert.Equal(t, StepImpute, rep.Operations[0].Step)
	assert.Contains(t, rep.Operations[0].Detail, "median")
}

func TestCleanRowMissingnessThreshold(t *testing.T) {
	out, rep := clean(t, DefaultOptions(), []string{"a", "b", "c", "d"}, [][]string{
		{"1", "x", "y", "z"},
		{"2", "", "", ""},
		{"3", "p", "", ""},
	})
	assert.Equal(t, 2, out.NumRows())
	assert.Equal(t, []string{"1", "3"}, column(t, out, "a"))
	assert.Equal(t, 1, rep.RowsDropped)
	assert.Equal(t, 3, rep.RowsBefore)
	assert.Equal(t, 2, rep.RowsAfter)
	assert.Equal(t, StepDropRows, rep.Operations[0].Step)
}

func TestCleanZeroOptionsUseDefaults(t *testing.T) {
	eng := New(Options{})
	assert.Equal(t, 0.5, *eng.Options().MissingRowThreshold)
	assert.False(t, eng.Options().NoReimpute)

	out, rep := clean(t, Options{}, []string{"id", "score", "city"}, [][]string{
		{"1", "10", "Paris"},
		{"2", "", "Lyon"},
		{"3", "20", "lyon"},
	})
	assert.Equal(t, 3, out.NumRows())
	assert.Zero(t, rep.RowsDropped)
	assert.Equal(t, []string{"10", "15", "20"}, column(t, out, "score"))

	out, _ = clean(t, Options{}, []string{"id", "amount"},
		[][]string{{"1", "$1,200"}, {"2", "$300"}, {"3", "45%"}, {"4", "(5)"}, {"5", "n.a."}})
	assert.Equal(t, "172.5", column(t, out, "amount")[4], "zero options still re-impute")

	out, rep = clean(t, Options{MissingRowThreshold: Threshold(0)}, []string{"id", "score"},
		[][]string{{"1", "10"}, {"2", ""}})
	assert.Equal(t, 1, out.NumRows(), "an explicit zero threshold drops any incomplete row")
	assert.Equal(t, 1, rep.RowsDropped)
}

func TestCleanCanonicalizesNumbers(t *testing.T) {
	out, rep := clean(t, DefaultOptions(), []string{"id", "price"}, [][]string{
		{"1", "12 "}, {"2", "1.50"}, {"3", "1.5"}, {"4", "9007199254740993"},
	})
	assert.Equal(t, dataset.KindNumeric, out.Column("price").Kind)
	assert.Equal(t, []string{"12", "1.5", "1.5", "9007199254740993"}, column(t, out, "price"))
	require.Len(t, rep.Operations, 1)
	assert.Equal(t, "canonical numbers", rep.Operations[0].Detail)
	assert.Equal(t, 2, rep.Operations[0].Cells)

	again, rep2, err := New(DefaultOptions()).Clean(out)
	require.NoError(t, err)
	assert.Equal(t, out.Records(), again.Records())
	assert.Empty(t, rep2.Operations)
}

func TestCleanDuplicateRemoval(t *testing.T) {
	out, rep := clean(t, DefaultOptions(), []string{"A", "B"}, [][]string{
		{"1", "2"}, {"1", "2"}, {"3", "4"},
	})
	assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, out.Records())
	assert.Equal(t, 1, rep.DuplicatesRemoved)
}

func TestCleanMissingIsNotEmptyString(t *testing.T) {
	in := &dataset.Dataset{Name: "x", Columns: []dataset.Column{
		{Name: "k", Kind: dataset.KindText, Cells: []dataset.Cell{dataset.Value("a"), dataset.Value("a"), dataset.Value("c"), dataset.Value("d")}},
		{Name: "v", Kind: dataset.KindText, Cells: []dataset.Cell{dataset.Value(""), dataset.Null, dataset.Value("b"), dataset.Value("b")}},
	}}
	out, rep, err := New(DefaultOptions()).Clean(in)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.DuplicatesRemoved)
	assert.Equal(t, 4, out.NumRows())
	assert.Equal(t, []string{"", "b", "b", "b"}, column(t, out, "v"))
}

func TestCleanDoesNotMutateInput(t *testing.T) {
	in := dataset.FromRecords("in.csv", messyHeader, messyRows())
	before := in.Clone()
	_, _, err := New(DefaultOptions()).Clean(in)
	require.NoError(t, err)
	assert.Equal(t, before, in)
}

func TestCleanInvariantsAndIdempotence(t *testing.T) {
	in := dataset.FromRecords("in.csv", messyHeader, messyRows())
	eng := New(DefaultOptions())

	once, rep1, err := eng.Clean(in)
	require.NoError(t, err)
	assert.Equal(t, in.ColumnNames(), once.ColumnNames())
	assert.LessOrEqual(t, once.NumRows(), in.NumRows())
	assert.Equal(t, 1, rep1.RowsDropped)
	assert.Equal(t, 1, rep1.DuplicatesRemoved)
	assert.Equal(t, 0, rep1.MissingAfter)
	assert.Equal(t, StepDropRows, rep1.Operations[0].Step)
	assert.Equal(t, StepDedup, rep1.Operations[1].Step)

	twice, rep2, err := eng.Clean(once)
	require.NoError(t, err)
	assert.Equal(t, once.Records(), twice.Records())
	assert.Zero(t, rep2.RowsDropped)
	assert.Zero(t, rep2.DuplicatesRemoved)
	assert.Zero(t, rep2.ImputedTotal())
	assert.Empty(t, rep2.Operations)
}

func TestCleanCoercesNumericLookingText(t *testing.T) {
	rows := [][]string{{"1", "$1,200"}, {"2", "$300"}, {"3", "45%"}, {"4", "(5)"}, {"5", "n.a."}}

	out, rep := clean(t, DefaultOptions(), []string{"id", "amount"}, rows)
	assert.Equal(t, []string{"1200", "300", "45", "-5", "172.5"}, column(t, out, "amount"))
	assert.Equal(t, dataset.KindNumeric, out.Column("amount").Kind)
	delta, _ := rep.Column("amount")
	assert.Equal(t, dataset.KindCategorical, delta.KindBefore)
	assert.Equal(t, dataset.KindNumeric, delta.KindAfter)
	assert.Equal(t, 1, delta.Imputed)
	assert.Empty(t, rep.Unresolved)

	opt := DefaultOptions()
	opt.NoReimpute = true
	out, rep = clean(t, opt, []string{"id", "amount"}, rows)
	assert.True(t, out.Column("amount").Cells[4].Missing)
	require.Len(t, rep.Unresolved, 1)
	assert.Equal(t, CellRef{Row: 4, Column: "amount", Reason: "could not be coerced"}, rep.Unresolved[0])
	assert.Empty(t, rep.UnresolvedColumns)
	assert.Equal(t, 1, rep.MissingAfter)
}

func TestCleanLeavesMostlyTextAlone(t *testing.T) {
	out, _ := clean(t, DefaultOptions(), []string{"id", "code"}, [][]string{
		{"1", "12"}, {"2", "AB-3"}, {"3", "x9"},
	})
	assert.Equal(t, []string{"12", "AB-3", "x9"}, column(t, out, "code"))
	assert.Equal(t, dataset.KindCategorical, out.Column("code").Kind)
}

func TestCleanDateLikeText(t *testing.T) {
	out, rep := clean(t, DefaultOptions(), []string{"id", "when"}, [][]string{
		{"1", "01/15/2024"}, {"2", "02/20/2024"}, {"3", "12/01/2024"}, {"4", "03/05/2024"}, {"5", "soon"},
	})
	assert.Equal(t, []string{"2024-01-15", "2024-02-20", "2024-12-01", "2024-03-05", "2024-01-15"}, column(t, out, "when"))
	assert.Equal(t, dataset.KindDatetime, out.Column("when").Kind)
	var steps []Step
	for _, op := range rep.Operations {
		steps = append(steps, op.Step)
	}
	assert.Equal(t, []Step{StepCoerce, StepReimpute}, steps)
}

func TestCleanDatetimeOutputLayout(t *testing.T) {
	out, _ := clean(t, DefaultOptions(), []string{"id", "at"}, [][]string{
		{"1", "2024-01-05 10:30"}, {"2", "2024-01-06 00:00"},
	})
	assert.Equal(t, []string{"2024-01-05 10:30:00", "2024-01-06 00:00:00"}, column(t, out, "at"))

	out, _ = clean(t, DefaultOptions(), []string{"id", "at"}, [][]string{
		{"1", "2024-01-05 00:00:00"}, {"2", "2024-01-06 00:00:00"},
	})
	assert.Equal(t, []string{"2024-01-05", "2024-01-06"}, column(t, out, "at"))
}

func TestCleanBooleans(t *testing.T) {
	out, _ := clean(t, DefaultOptions(), []string{"id", "flag"}, [][]string{
		{"1", "Yes"}, {"2", "no"}, {"3", "Y"}, {"4", "FALSE"},
	})
	assert.Equal(t, []string{"true", "false", "true", "false"}, column(t, out, "flag"))
}

func TestCleanTextCasePolicy(t *testing.T) {
	rows := [][]string{{"1", "  new   york "}, {"2", "BOSTON"}}

	out, _ := clean(t, DefaultOptions(), []string{"id", "city"}, rows)
	assert.Equal(t, []string{"new york", "BOSTON"}, column(t, out, "city"))

	opt := DefaultOptions()
	opt.CasePolicy = CaseTitle
	out, rep := clean(t, opt, []string{"id", "city"}, rows)
	assert.Equal(t, []string{"New York", "Boston"}, column(t, out, "city"))
	require.Len(t, rep.Operations, 1)
	assert.Equal(t, "trimmed whitespace, title case", rep.Operations[0].Detail)

	opt.CasePolicy = CaseUpper
	out, _ = clean(t, opt, []string{"id", "city"}, rows)
	assert.Equal(t, []string{"NEW YORK", "BOSTON"}, column(t, out, "city"))
}

func TestCleanNormalizationCanCreateDuplicates(t *testing.T) {
	out, rep := clean(t, DefaultOptions(), []string{"name", "flag"}, [][]string{
		{"ann", "yes"}, {" ann", "Yes"}, {"bob", "no"},
	})
	assert.Equal(t, [][]string{{"ann", "true"}, {"bob", "false"}}, out.Records())
	assert.Equal(t, 1, rep.DuplicatesRemoved)
	assert.Equal(t, StepFinalDedup, rep.Operations[len(rep.Operations)-1].Step)
}

func TestCleanEntirelyMissingColumn(t *testing.T) {
	out, rep := clean(t, DefaultOptions(), []string{"id", "a", "empty"}, [][]string{
		{"1", "x", ""}, {"2", "y", "NA"},
	})
	assert.Equal(t, 2, out.NumRows())
	assert.Equal(t, []string{"empty"}, rep.UnresolvedColumns)
	assert.Equal(t, []CellRef{
		{Row: 0, Column: "empty", Reason: "no value to impute from"},
		{Row: 1, Column: "empty", Reason: "no value to impute from"},
	}, rep.Unresolved)
	assert.Equal(t, 2, rep.MissingAfter)
}

func TestCleanModeTieBreak(t *testing.T) {
	out, _ := clean(t, DefaultOptions(), []string{"id", "c"}, [][]string{
		{"1", "b"}, {"2", "a"}, {"3", "a"}, {"4", "b"}, {"5", ""},
	})
	assert.Equal(t, "b", column(t, out, "c")[4])
}

func TestCleanEmptyDataset(t *testing.T) {
	out, rep := clean(t, DefaultOptions(), []string{"a", "b"}, nil)
	assert.Equal(t, 0, out.NumRows())
	assert.Equal(t, 2, rep.ColumnsAfter)
	assert.Empty(t, rep.Operations)
}

func TestCleanInvalidDataset(t *testing.T) {
	in := &dataset.Dataset{Columns: []dataset.Column{
		{Name: "a", Cells: []dataset.Cell{dataset.Value("1"), dataset.Value("2")}},
		{Name: "b", Cells: []dataset.Cell{dataset.Value("1")}},
	}}
	_, _, err := New(DefaultOptions()).Clean(in)
	var ide *dataset.InvalidDatasetError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, "b", ide.Column)
}

func TestMode(t *testing.T) {
	v, ok := Mode([]string{"x", "y", "y", "x", "z"})
	assert.True(t, ok)
	assert.Equal(t, "x", v)
	_, ok = Mode(nil)
	assert.False(t, ok)
}

func TestParseCasePolicy(t *testing.T) {
	p, err := ParseCasePolicy(" Title ")
	require.NoError(t, err)
	assert.Equal(t, CaseTitle, p)
	p, err = ParseCasePolicy("")
	require.NoError(t, err)
	assert.Equal(t, CaseNone, p)
	_, err = ParseCasePolicy("snake")
	assert.Error(t, err)
}
