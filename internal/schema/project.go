package schema

import (
	"epietl/internal/parser"
	"epietl/pkg/records"
)

// Project rewrites every row of t onto the canonical vocabulary resolved in
// m: mapped columns appear under their canonical names, and unrecognized
// columns are carried under their normalized names so the deriver can scan
// them for rate-style metrics. Canonical fields with no source column are
// left absent; the deriver fills defaults.
//
// Project never mutates t; each output record is freshly allocated.
func Project(t *parser.Table, m Mapping) []records.Record {
	out := make([]records.Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(records.Record, len(m.Source)+len(m.Extras))
		for field, src := range m.Source {
			if v, ok := row[src]; ok && v != nil {
				rec[field] = v
			}
		}
		for i, src := range m.Unrecognized {
			if v, ok := row[src]; ok && v != nil {
				rec[m.Extras[i]] = v
			}
		}
		out = append(out, rec)
	}
	return out
}
