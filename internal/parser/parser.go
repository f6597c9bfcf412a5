// Package parser defines the uniform tabular view produced by the format
// parsers: an ordered column list plus one record per row. The engine works
// against this view and never sees the original encoding.
package parser

import (
	"io"

	"epietl/pkg/records"
)

// Table is the collaborator-provided tabular view of one input file.
type Table struct {
	// Columns holds the source column names in file order. For JSON inputs
	// the order is first-seen key order across the records.
	Columns []string

	// Rows holds one record per source row, keyed by the names in Columns.
	// Values are raw (strings for CSV; string/json.Number/bool/nil for JSON).
	Rows []records.Record
}

// Parser turns raw bytes into a Table.
type Parser interface {
	Parse(r io.Reader) (*Table, error)
}
