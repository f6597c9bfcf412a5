// Package records defines the record type shared by parsers and transforms.
package records

// Record is a single logical row keyed by column name. Parsers produce
// records with raw values (strings for CSV, json.Number/string/bool for
// JSON); downstream stages coerce them to typed values.
type Record map[string]any
