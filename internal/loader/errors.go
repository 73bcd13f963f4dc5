package loader

import "fmt"

// UnsupportedFormatError means the input is not one of the supported formats,
// or its content does not match the declared/extension format.
type UnsupportedFormatError struct {
	Name   string
	Format Format
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("unsupported format for %s (%s): %s", e.Name, e.Format, e.Reason)
	}
	return fmt.Sprintf("unsupported format for %s: %s", e.Name, e.Reason)
}

// ParseError means the input matched a supported format but is structurally
// invalid. Row is 1-based counting the header, 0 when not row-specific.
type ParseError struct {
	Name   string
	Format Format
	Row    int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("parse %s %s: row %d: %v", e.Format, e.Name, e.Row, e.Err)
	}
	return fmt.Sprintf("parse %s %s: %v", e.Format, e.Name, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FileTooLargeError means the input exceeds the configured size ceiling.
type FileTooLargeError struct {
	Name  string
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("%s exceeds the %d MiB size limit", e.Name, e.Limit>>20)
}
