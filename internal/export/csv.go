package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/datatidy-cli/internal/dataset"
	"github.com/KaramelBytes/datatidy-cli/internal/errors"
	"github.com/KaramelBytes/datatidy-cli/internal/utils"
)

// WriteCSV writes ds with a header row. Missing cells become empty fields.
func WriteCSV(w io.Writer, ds *dataset.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.ColumnNames()); err != nil {
		return errors.Wrap(err, "write header")
	}
	if err := cw.WriteAll(ds.Records()); err != nil {
		return errors.Wrap(err, "write rows")
	}
	return nil
}

// WriteCSVFile writes ds to path atomically; on error no file is left behind.
func WriteCSVFile(path string, ds *dataset.Dataset) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, ds); err != nil {
		return err
	}
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// DefaultOutputPath returns cleaned_<base>.csv next to input.
func DefaultOutputPath(input string) string {
	return OutputPathIn(filepath.Dir(input), input)
}

// OutputPathIn returns cleaned_<base>.csv inside dir.
func OutputPathIn(dir, input string) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "cleaned_"+base+".csv")
}
