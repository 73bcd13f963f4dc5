package loader

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/datatidy-cli/internal/dataset"
	"github.com/KaramelBytes/datatidy-cli/internal/errors"
)

// Format identifies a supported input encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// DefaultMaxBytes is the input size ceiling when Options.MaxBytes is unset.
const DefaultMaxBytes int64 = 200 << 20

// Options controls loading.
type Options struct {
	// Format overrides extension-based detection when set.
	Format Format
	// Delimiter for CSV. If 0, sniffed from the header line.
	Delimiter rune
	// SheetName selects a workbook sheet by name (XLSX/XLS).
	SheetName string
	// SheetIndex is the 1-based sheet position, used when SheetName is empty.
	SheetIndex int
	// MaxBytes caps the input size; 0 means DefaultMaxBytes.
	MaxBytes int64
}

// Reader decodes one input format into a header and string rows.
type Reader interface {
	Format() Format
	CanRead(filename string) bool
	// Sniff reports whether the leading bytes are plausible for this format.
	Sniff(head []byte) bool
	Read(data []byte, opt Options) (header []string, rows [][]string, err error)
}

var registry []Reader

// Register adds a reader to the registry.
func Register(r Reader) { registry = append(registry, r) }

func init() {
	Register(csvReader{})
	Register(xlsxReader{})
	Register(xlsReader{})
}

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "csv", "tsv", "txt":
		return FormatCSV, true
	case "xlsx":
		return FormatXLSX, true
	case "xls":
		return FormatXLS, true
	}
	return "", false
}

// LoadFile opens path and loads it with Load.
func LoadFile(path string, opt Options) (*dataset.Dataset, error) {
	name := filepath.Base(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "open input")
	}
	if limit := maxBytes(opt); info.Size() > limit {
		return nil, errors.WithHint(&FileTooLargeError{Name: name, Limit: limit}, "raise max_file_mb in the config to allow larger files")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open input")
	}
	defer f.Close()
	return Load(f, name, opt)
}

// Load reads r fully and decodes it into a Dataset. name is used for format
// detection by extension and for error messages.
func Load(r io.Reader, name string, opt Options) (*dataset.Dataset, error) {
	limit := maxBytes(opt)
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	if int64(len(data)) > limit {
		return nil, errors.WithHint(&FileTooLargeError{Name: name, Limit: limit}, "raise max_file_mb in the config to allow larger files")
	}

	rd, err := selectReader(name, opt.Format)
	if err != nil {
		return nil, err
	}
	head := data
	if len(head) > 8<<10 {
		head = head[:8<<10]
	}
	if !rd.Sniff(head) {
		return nil, &UnsupportedFormatError{Name: name, Format: rd.Format(), Reason: "content does not match the format"}
	}

	header, rows, err := rd.Read(data, opt)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Name = name
			return nil, err
		}
		return nil, &ParseError{Name: name, Format: rd.Format(), Err: err}
	}
	if len(header) == 0 {
		return nil, &ParseError{Name: name, Format: rd.Format(), Err: errors.New("no columns to parse")}
	}
	return dataset.FromRecords(name, header, rows), nil
}

func selectReader(name string, declared Format) (Reader, error) {
	if declared != "" {
		for _, rd := range registry {
			if rd.Format() == declared {
				return rd, nil
			}
		}
		return nil, errors.WithHint(
			&UnsupportedFormatError{Name: name, Format: declared, Reason: "no reader for format"},
			"supported formats: csv, xlsx, xls")
	}
	for _, rd := range registry {
		if rd.CanRead(name) {
			return rd, nil
		}
	}
	return nil, errors.WithHint(
		&UnsupportedFormatError{Name: name, Reason: "unrecognized extension"},
		"supported extensions: .csv, .tsv, .txt, .xlsx, .xls")
}

func maxBytes(opt Options) int64 {
	if opt.MaxBytes > 0 {
		return opt.MaxBytes
	}
	return DefaultMaxBytes
}

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

func hasExt(filename string, exts ...string) bool {
	lower := strings.ToLower(filename)
	for _, e := range exts {
		if strings.HasSuffix(lower, e) {
			return true
		}
	}
	return false
}

func isBinary(head []byte) bool {
	return bytes.HasPrefix(head, zipMagic) || bytes.HasPrefix(head, oleMagic) || bytes.IndexByte(head, 0) >= 0
}
