package loader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/datatidy-cli/internal/errors"
)

type csvReader struct{}

func (csvReader) Format() Format { return FormatCSV }

func (csvReader) CanRead(filename string) bool {
	return hasExt(filename, ".csv", ".tsv", ".txt")
}

func (csvReader) Sniff(head []byte) bool { return !isBinary(head) }

func (csvReader) Read(data []byte, opt Options) ([]string, [][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(data)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil
		}
		return nil, nil, &ParseError{Format: FormatCSV, Row: 1, Err: err}
	}
	header = append([]string(nil), header...)
	ncol := len(header)

	var rows [][]string
	line := 1
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, nil, &ParseError{Format: FormatCSV, Row: pe.StartLine, Err: pe.Err}
			}
			return nil, nil, &ParseError{Format: FormatCSV, Row: line + 1, Err: err}
		}
		line++
		if len(rec) > ncol {
			if !blankTail(rec[ncol:]) {
				row, _ := r.FieldPos(0)
				return nil, nil, &ParseError{
					Format: FormatCSV,
					Row:    row,
					Err:    fmt.Errorf("expected %d fields, saw %d", ncol, len(rec)),
				}
			}
			rec = rec[:ncol]
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

func blankTail(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// sniffDelimiter counts candidate separators on the first line, ignoring
// quoted sections, and picks the most frequent. Comma wins ties and is the
// fallback.
func sniffDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	counts := map[rune]int{}
	inQuote := false
	for _, r := range string(first) {
		if r == '"' {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}
		switch r {
		case ',', ';', '\t', '|':
			counts[r]++
		}
	}
	best, bestN := ',', counts[',']
	for _, c := range []rune{';', '\t', '|'} {
		if counts[c] > bestN {
			best, bestN = c, counts[c]
		}
	}
	return best
}
