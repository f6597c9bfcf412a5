// Package csv parses delimited text files into the uniform tabular view.
//
// The reader is deliberately tolerant: variable field counts are allowed
// (short rows yield nil cells, long rows keep only header-covered cells),
// lazy quotes can be enabled for sloppy exports, and a UTF-8 BOM on the
// first header cell is always stripped.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"epietl/internal/config"
	"epietl/internal/parser"
	"epietl/pkg/records"
)

const utf8BOM = "\ufeff"

// Parser reads delimited text into a parser.Table.
type Parser struct {
	// Comma is the field delimiter; ',' when zero.
	Comma rune

	// LazyQuotes tolerates unescaped quotes inside fields.
	LazyQuotes bool

	// TrimSpace trims surrounding whitespace from every cell. Defaults to
	// true via New; raw cell preservation is opt-out.
	TrimSpace bool
}

// New constructs a Parser from the free-form parser options bag.
func New(opt config.Options) *Parser {
	return &Parser{
		Comma:      opt.Rune("comma", ','),
		LazyQuotes: opt.Bool("lazy_quotes", false),
		TrimSpace:  opt.Bool("trim_space", true),
	}
}

// Parse reads the whole input and returns its tabular view. The first row is
// always treated as the header.
func (p *Parser) Parse(r io.Reader) (*parser.Table, error) {
	cr := csv.NewReader(r)
	if p.Comma != 0 {
		cr.Comma = p.Comma
	}
	cr.FieldsPerRecord = -1 // tolerant by default
	cr.ReuseRecord = true
	cr.LazyQuotes = p.LazyQuotes
	cr.TrimLeadingSpace = true

	hdr, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("csv: empty input")
		}
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	columns := make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		columns[i] = strings.TrimSpace(h)
	}

	t := &parser.Table{Columns: columns}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read row: %w", err)
		}

		row := make(records.Record, len(columns))
		for i, col := range columns {
			if i >= len(rec) {
				row[col] = nil
				continue
			}
			cell := rec[i]
			if p.TrimSpace {
				cell = strings.TrimSpace(cell)
			}
			if cell == "" {
				row[col] = nil
				continue
			}
			row[col] = cell
		}
		t.Rows = append(t.Rows, row)
	}
}
