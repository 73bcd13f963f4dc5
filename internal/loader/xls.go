package loader

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/extrame/xls"

	"github.com/KaramelBytes/datatidy-cli/internal/errors"
)

type xlsReader struct{}

func (xlsReader) Format() Format { return FormatXLS }

func (xlsReader) CanRead(filename string) bool { return hasExt(filename, ".xls") }

func (xlsReader) Sniff(head []byte) bool { return bytes.HasPrefix(head, oleMagic) }

// Read decodes a legacy BIFF workbook. The decoder panics on some corrupt
// inputs, which is reported as a ParseError.
func (xlsReader) Read(data []byte, opt Options) (header []string, rows [][]string, err error) {
	defer func() {
		if p := recover(); p != nil {
			header, rows = nil, nil
			err = &ParseError{Format: FormatXLS, Err: fmt.Errorf("corrupt workbook: %v", p)}
		}
	}()
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, nil, &ParseError{Format: FormatXLS, Err: errors.Wrap(err, "open workbook")}
	}
	sheet, err := pickXLSSheet(wb, opt.SheetName, opt.SheetIndex)
	if err != nil {
		return nil, nil, &ParseError{Format: FormatXLS, Err: err}
	}

	var records [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			continue
		}
		last := row.LastCol()
		if last <= 0 {
			records = append(records, nil)
			continue
		}
		rec := make([]string, last)
		for j := row.FirstCol(); j < last; j++ {
			rec[j] = row.Col(j)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	header = records[0]
	for len(header) > 0 && strings.TrimSpace(header[len(header)-1]) == "" {
		header = header[:len(header)-1]
	}
	ncol := len(header)
	for i, rec := range records[1:] {
		if len(rec) > ncol {
			if !blankTail(rec[ncol:]) {
				return nil, nil, &ParseError{
					Format: FormatXLS,
					Row:    i + 2,
					Err:    fmt.Errorf("expected %d cells, saw %d", ncol, len(rec)),
				}
			}
			rec = rec[:ncol]
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

// xlsRow returns row i, or nil when the sheet has no record for it. The
// decoder dereferences the missing row before returning it.
func xlsRow(s *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return s.Row(i)
}

func pickXLSSheet(wb *xls.WorkBook, name string, index int) (*xls.WorkSheet, error) {
	n := wb.NumSheets()
	if n == 0 {
		return nil, errors.New("workbook lists no sheets")
	}
	if name != "" {
		names := make([]string, 0, n)
		for i := 0; i < n; i++ {
			s := wb.GetSheet(i)
			if s == nil {
				continue
			}
			if strings.EqualFold(s.Name, name) {
				return s, nil
			}
			names = append(names, s.Name)
		}
		return nil, errors.WithHintf(fmt.Errorf("sheet %q not found", name),
			"available sheets: %s", strings.Join(names, ", "))
	}
	if index <= 0 {
		index = 1
	}
	if index > n {
		return nil, fmt.Errorf("sheet index %d out of range (workbook has %d)", index, n)
	}
	s := wb.GetSheet(index - 1)
	if s == nil {
		return nil, fmt.Errorf("sheet %d unreadable", index)
	}
	return s, nil
}
