package scraper

import (
	"fmt"
	"strings"
)

// StructureError reports a document that does not have the bulletin shape.
// Section and Row are zero-based; -1 means not applicable.
type StructureError struct {
	Op      string
	Section int
	Row     int
	Err     error
}

func (e *StructureError) Error() string {
	var b strings.Builder
	b.WriteString("unexpected page structure: ")
	b.WriteString(e.Op)
	if e.Section >= 0 {
		fmt.Fprintf(&b, " (table %d", e.Section)
		if e.Row >= 0 {
			fmt.Fprintf(&b, ", row %d", e.Row)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StructureError) Unwrap() error {
	return e.Err
}

func structureErr(op string, section, row int, err error) *StructureError {
	return &StructureError{Op: op, Section: section, Row: row, Err: err}
}
