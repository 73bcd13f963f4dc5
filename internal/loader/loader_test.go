package loader

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/datatidy-cli/internal/dataset"
	"github.com/KaramelBytes/datatidy-cli/internal/errors"
)

func loadString(t *testing.T, name, body string, opt Options) (*dataset.Dataset, error) {
	t.Helper()
	return Load(strings.NewReader(body), name, opt)
}

func TestLoadCSVBasic(t *testing.T) {
	ds, err := loadString(t, "people.csv", "name,age,city\nAda,36,London\nBob,,Paris\n", Options{})
	require.NoError(t, err)
	require.NoError(t, ds.Validate())
	assert.Equal(t, "people.csv", ds.Name)
	assert.Equal(t, []string{"name", "age", "city"}, ds.ColumnNames())
	assert.Equal(t, 2, ds.NumRows())
	assert.Equal(t, dataset.KindNumeric, ds.Column("age").Kind)
	assert.True(t, ds.Column("age").Cells[1].Missing)
	assert.Equal(t, 1, ds.MissingCount())
}

func TestLoadCSVSniffsDelimiter(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"semicolon", "a;b;c\n1;2;3\n"},
		{"tab", "a\tb\tc\n1\t2\t3\n"},
		{"pipe", "a|b|c\n1|2|3\n"},
		{"quoted commas", "\"x,y\";b;c\n1;2;3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := loadString(t, "in.csv", tt.body, Options{})
			require.NoError(t, err)
			assert.Equal(t, 3, ds.NumCols())
			assert.Equal(t, [][]string{{"1", "2", "3"}}, ds.Records())
		})
	}
}

func TestLoadCSVExplicitDelimiter(t *testing.T) {
	ds, err := loadString(t, "in.txt", "a;b,c\n1;2,3\n", Options{Delimiter: ','})
	require.NoError(t, err)
	assert.Equal(t, []string{"a;b", "c"}, ds.ColumnNames())
}

func TestLoadCSVStripsBOMAndPadsShortRows(t *testing.T) {
	ds, err := loadString(t, "bom.csv", "\xEF\xBB\xBFid,score,note\n1,5\n2,6,ok\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, "id", ds.Columns[0].Name)
	assert.True(t, ds.Column("note").Cells[0].Missing)
	assert.Equal(t, "ok", ds.Column("note").Cells[1].Value)
}

func TestLoadCSVTrimsBlankTrailingFields(t *testing.T) {
	ds, err := loadString(t, "trail.csv", "a,b\n1,2,,\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2"}}, ds.Records())
}

func TestLoadCSVTooManyFields(t *testing.T) {
	_, err := loadString(t, "wide.csv", "a,b\n1,2\n3,4,5\n", Options{})
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "wide.csv", pe.Name)
	assert.Equal(t, FormatCSV, pe.Format)
	assert.Equal(t, 3, pe.Row)
}

func TestLoadCSVBadQuote(t *testing.T) {
	_, err := loadString(t, "quote.csv", "a,b\n1,\"open\n", Options{})
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "quote.csv", pe.Name)
}

func TestLoadEmptyInput(t *testing.T) {
	_, err := loadString(t, "empty.csv", "", Options{})
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, err.Error(), "no columns to parse")
}

func TestLoadMissingTokensAndHeaderNormalization(t *testing.T) {
	ds, err := loadString(t, "na.csv", "x,,x\nNA,1,null\nn/a,2,v\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "Unnamed: 1", "x.1"}, ds.ColumnNames())
	assert.Equal(t, 3, ds.MissingCount())
}

func TestLoadUnsupportedExtension(t *testing.T) {
	_, err := loadString(t, "report.pdf", "%PDF-1.4", Options{})
	var ue *UnsupportedFormatError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "report.pdf", ue.Name)
	assert.NotEmpty(t, errors.FlattenHints(err))
}

func TestLoadUnknownDeclaredFormat(t *testing.T) {
	_, err := loadString(t, "data.csv", "a\n1\n", Options{Format: "parquet"})
	var ue *UnsupportedFormatError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, Format("parquet"), ue.Format)
}

func TestLoadContentMismatch(t *testing.T) {
	t.Run("binary named csv", func(t *testing.T) {
		_, err := Load(bytes.NewReader([]byte("PK\x03\x04rest")), "sheet.csv", Options{})
		var ue *UnsupportedFormatError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, FormatCSV, ue.Format)
	})
	t.Run("text named xlsx", func(t *testing.T) {
		_, err := loadString(t, "sheet.xlsx", "a,b\n1,2\n", Options{})
		var ue *UnsupportedFormatError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, FormatXLSX, ue.Format)
	})
	t.Run("text named xls", func(t *testing.T) {
		_, err := loadString(t, "sheet.xls", "a,b\n1,2\n", Options{})
		var ue *UnsupportedFormatError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, FormatXLS, ue.Format)
	})
}

func TestLoadCorruptXLS(t *testing.T) {
	data := append(append([]byte{}, oleMagic...), bytes.Repeat([]byte{0xff}, 64)...)
	_, err := Load(bytes.NewReader(data), "legacy.xls", Options{})
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, FormatXLS, pe.Format)
}

func TestLoadSizeLimit(t *testing.T) {
	body := "a,b\n" + strings.Repeat("1,2\n", 100)

	_, err := loadString(t, "big.csv", body, Options{MaxBytes: 64})
	var fe *FileTooLargeError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, int64(64), fe.Limit)

	path := filepath.Join(t.TempDir(), "big.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	_, err = LoadFile(path, Options{MaxBytes: 64})
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "big.csv", fe.Name)

	ds, err := LoadFile(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 100, ds.NumRows())
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.csv"), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseFormat(t *testing.T) {
	f, ok := ParseFormat(".XLSX")
	assert.True(t, ok)
	assert.Equal(t, FormatXLSX, f)
	f, ok = ParseFormat("tsv")
	assert.True(t, ok)
	assert.Equal(t, FormatCSV, f)
	_, ok = ParseFormat("json")
	assert.False(t, ok)
}

func TestSniffDelimiterDefaultsToComma(t *testing.T) {
	assert.Equal(t, ',', sniffDelimiter([]byte("single\n1\n")))
	assert.Equal(t, ',', sniffDelimiter([]byte("a,b;c\n")))
}

// testdata/sales.xls is a BIFF8 workbook with a "Summary" sheet and a
// "Sales" sheet. Sales has a blank trailing header cell, no record for
// row 3, a short row and a row starting at column B.
func TestLoadXLSSheets(t *testing.T) {
	path := filepath.Join("testdata", "sales.xls")

	byName, err := LoadFile(path, Options{SheetName: "sales"})
	require.NoError(t, err)
	assert.Equal(t, "sales.xls", byName.Name)
	assert.Equal(t, []string{"id", "city", "amount"}, byName.ColumnNames())
	assert.Equal(t, [][]string{
		{"1", "Paris", "12.5"},
		{"2", "Lyon", ""},
		{"", "Nice", "7"},
	}, byName.Records())
	assert.True(t, byName.Columns[2].Cells[1].Missing)
	assert.True(t, byName.Columns[0].Cells[2].Missing)

	byIndex, err := LoadFile(path, Options{SheetIndex: 2})
	require.NoError(t, err)
	assert.Equal(t, byName.Records(), byIndex.Records())

	first, err := LoadFile(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"note"}, first.ColumnNames())
	assert.Equal(t, [][]string{{"see the Sales sheet"}}, first.Records())

	var pe *ParseError
	_, err = LoadFile(path, Options{SheetName: "nope"})
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, FormatXLS, pe.Format)
	assert.Contains(t, errors.FlattenHints(err), "Summary, Sales")

	_, err = LoadFile(path, Options{SheetIndex: 3})
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, err.Error(), "out of range")
}
