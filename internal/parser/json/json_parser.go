// Package json parses JSON inputs into the uniform tabular view.
//
// It is deliberately simple and conservative:
//
//   - Supports a top-level JSON array of objects (the common dataset export
//     shape for this domain).
//   - Also supports newline-delimited JSON objects (NDJSON).
//   - Non-object array elements and junk lines are skipped.
//
// Column order is the first-seen key order across all records, with keys
// within one object visited in sorted order for determinism (Go maps do not
// preserve JSON key order).
package json

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"epietl/internal/parser"
	"epietl/pkg/records"
)

// Parser reads JSON into a parser.Table.
type Parser struct{}

// New constructs a JSON Parser.
func New() *Parser { return &Parser{} }

// Parse decodes either a top-level array of objects or a stream of objects.
// Numbers are decoded as json.Number so downstream coercion decides the type.
func (p *Parser) Parse(r io.Reader) (*parser.Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("json: empty input")
		}
		return nil, fmt.Errorf("json: read: %w", err)
	}

	t := &parser.Table{}
	seen := map[string]struct{}{}

	add := func(raw map[string]any) {
		keys := make([]string, 0, len(raw))
		for k := range raw {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				t.Columns = append(t.Columns, k)
			}
		}
		t.Rows = append(t.Rows, records.Record(raw))
	}

	if d, ok := tok.(json.Delim); ok && d == '[' {
		// Top-level array of objects.
		for dec.More() {
			var raw map[string]any
			if err := dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("json: decode element: %w", err)
			}
			add(raw)
		}
		if _, err := dec.Token(); err != nil { // closing ']'
			return nil, fmt.Errorf("json: read: %w", err)
		}
		return t, nil
	}

	// Object stream (NDJSON): the first token was the opening '{' of the
	// first object, so re-decode from scratch.
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("json: top-level value must be an array or object stream")
	}
	first := map[string]any{}
	if err := decodeObjectBody(dec, first); err != nil {
		return nil, err
	}
	add(first)
	for {
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			if err == io.EOF {
				return t, nil
			}
			return nil, fmt.Errorf("json: decode object: %w", err)
		}
		add(raw)
	}
}

// decodeObjectBody consumes the remainder of an object whose opening brace
// has already been read, filling dst with its members.
func decodeObjectBody(dec *json.Decoder, dst map[string]any) error {
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: read key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("json: object key is not a string: %v", keyTok)
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("json: decode value for %q: %w", key, err)
		}
		dst[key] = val
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return fmt.Errorf("json: read: %w", err)
	}
	return nil
}
