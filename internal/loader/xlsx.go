package loader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/KaramelBytes/datatidy-cli/internal/errors"
)

type xlsxReader struct{}

func (xlsxReader) Format() Format { return FormatXLSX }

func (xlsxReader) CanRead(filename string) bool { return hasExt(filename, ".xlsx") }

func (xlsxReader) Sniff(head []byte) bool { return bytes.HasPrefix(head, zipMagic) }

// Read extracts the selected sheet (first by default). The first row is the
// header.
func (xlsxReader) Read(data []byte, opt Options) ([]string, [][]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, &ParseError{Format: FormatXLSX, Err: errors.Wrap(err, "open archive")}
	}
	workbookXML := readZipFile(zr, "xl/workbook.xml")
	if workbookXML == nil {
		return nil, nil, &ParseError{Format: FormatXLSX, Err: errors.New("archive has no xl/workbook.xml")}
	}
	sheets := parseWorkbook(workbookXML)
	rels := parseRelationships(readZipFile(zr, "xl/_rels/workbook.xml.rels"))

	target, err := resolveSheet(sheets, rels, opt.SheetName, opt.SheetIndex)
	if err != nil {
		return nil, nil, &ParseError{Format: FormatXLSX, Err: err}
	}
	sheetXML := readZipFile(zr, target)
	if sheetXML == nil {
		return nil, nil, &ParseError{Format: FormatXLSX, Err: fmt.Errorf("sheet part %s missing", target)}
	}
	shared := parseSharedStrings(readZipFile(zr, "xl/sharedStrings.xml"))

	rr := newSheetRowReader(sheetXML, shared)
	header, ok := rr.Next()
	if !ok {
		return nil, nil, rr.Err()
	}
	for len(header) > 0 && strings.TrimSpace(header[len(header)-1]) == "" {
		header = header[:len(header)-1]
	}
	ncol := len(header)
	var rows [][]string
	for {
		row, ok := rr.Next()
		if !ok {
			break
		}
		if len(row) > ncol {
			if !blankTail(row[ncol:]) {
				return nil, nil, &ParseError{
					Format: FormatXLSX,
					Row:    len(rows) + 2,
					Err:    fmt.Errorf("expected %d cells, saw %d", ncol, len(row)),
				}
			}
			row = row[:ncol]
		}
		rows = append(rows, row)
	}
	if err := rr.Err(); err != nil {
		return nil, nil, err
	}
	return header, rows, nil
}

// resolveSheet maps a sheet name or 1-based index to its part path. With
// neither given, the first sheet in workbook order is used.
func resolveSheet(sheets []wbSheet, rels map[string]string, name string, index int) (string, error) {
	if name != "" {
		for _, s := range sheets {
			if strings.EqualFold(s.Name, name) {
				if rel, ok := rels[s.RID]; ok {
					return normalizeRelPath(rel), nil
				}
				return "", fmt.Errorf("sheet %q has no relationship target", name)
			}
		}
		available := make([]string, len(sheets))
		for i, s := range sheets {
			available[i] = s.Name
		}
		return "", errors.WithHintf(fmt.Errorf("sheet %q not found", name),
			"available sheets: %s", strings.Join(available, ", "))
	}
	if index <= 0 {
		index = 1
	}
	if index <= len(sheets) {
		if rel, ok := rels[sheets[index-1].RID]; ok {
			return normalizeRelPath(rel), nil
		}
	}
	if len(sheets) == 0 {
		return "", errors.New("workbook lists no sheets")
	}
	return path.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", index)), nil
}

type wbSheet struct {
	Name    string
	SheetID int
	RID     string
}

// parseWorkbook extracts sheet entries in workbook order.
func parseWorkbook(data []byte) []wbSheet {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var sheets []wbSheet
	for {
		tok, err := dec.Token()
		if err != nil {
			return sheets
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sheet" {
			continue
		}
		var s wbSheet
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.Name = a.Value
			case "sheetId":
				s.SheetID = atoiSafe(a.Value)
			case "id":
				s.RID = a.Value // r: namespace
			}
		}
		sheets = append(sheets, s)
	}
}

// parseRelationships returns map[r:id]Target.
func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	if len(data) == 0 {
		return out
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Relationship" {
			continue
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	}
}

func readZipFile(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil
		}
		return b
	}
	return nil
}

// parseSharedStrings concatenates every <t> run inside each <si>.
func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	var inT bool
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "si" {
				buf.Reset()
			}
			if se.Name.Local == "t" {
				inT = true
			}
		case xml.EndElement:
			if se.Name.Local == "t" {
				inT = false
			}
			if se.Name.Local == "si" {
				out = append(out, buf.String())
				buf.Reset()
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	}
}

// sheetRowReader streams rows from a worksheet part.
type sheetRowReader struct {
	dec    *xml.Decoder
	shared []string
	curRow []string
	err    error
}

func newSheetRowReader(data []byte, shared []string) *sheetRowReader {
	return &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

// Err returns the first decode error other than end of input.
func (r *sheetRowReader) Err() error { return r.err }

func (r *sheetRowReader) Next() ([]string, bool) {
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) && r.err == nil {
				r.err = &ParseError{Format: FormatXLSX, Err: errors.Wrap(err, "decode sheet")}
			}
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				inRow = true
				r.curRow = nil
			}
			if inRow && se.Name.Local == "c" {
				var rAttr, tAttr string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						rAttr = a.Value
					case "t":
						tAttr = a.Value
					}
				}
				colIdx := colIndexFromRef(rAttr)
				if colIdx < 0 {
					colIdx = len(r.curRow)
				}
				val := r.readCellValue(tAttr)
				if len(r.curRow) <= colIdx {
					tmp := make([]string, colIdx+1)
					copy(tmp, r.curRow)
					r.curRow = tmp
				}
				r.curRow[colIdx] = val
			}
		case xml.EndElement:
			if se.Name.Local == "row" {
				return r.curRow, true
			}
		}
	}
}

// readCellValue consumes a <c> element and renders its value by cell type.
func (r *sheetRowReader) readCellValue(tAttr string) string {
	var v strings.Builder
	var inline strings.Builder
	var inV, inT bool
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return ""
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "v":
				inV = true
			case "t":
				inT = true
			}
		case xml.CharData:
			if inV {
				v.Write(se)
			}
			if inT {
				inline.Write(se)
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "v":
				inV = false
			case "t":
				inT = false
			case "c":
				return renderCell(tAttr, v.String(), inline.String(), r.shared)
			}
		}
	}
}

func renderCell(tAttr, v, inline string, shared []string) string {
	switch tAttr {
	case "s":
		idx := atoiSafe(v)
		if idx >= 0 && idx < len(shared) {
			return shared[idx]
		}
		return ""
	case "inlineStr":
		return inline
	case "b":
		if strings.TrimSpace(v) == "1" {
			return "true"
		}
		return "false"
	default:
		if v == "" {
			return inline
		}
		return v
	}
}

// colIndexFromRef maps refs like "C12" to a 0-based column (2). It returns -1
// for an empty ref.
func colIndexFromRef(ref string) int {
	i := 0
	for i < len(ref) {
		c := ref[i]
		if c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' {
			i++
			continue
		}
		break
	}
	s := strings.ToUpper(ref[:i])
	idx := 0
	for j := 0; j < len(s); j++ {
		idx = idx*26 + int(s[j]-'A'+1)
	}
	return idx - 1
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath converts relationship targets to ZIP entry names.
// Targets may be absolute ("/xl/worksheets/sheet1.xml") or relative to xl/.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
