// Package related ranks, for every record, the other records sharing the
// most keyword tokens with it.
package related

import (
	"fmt"
	"sort"

	"github.com/edgard/slackqa/internal/qa"
)

// candidateLimit is how many candidates survive the first cut before the
// final qa.MaxRelated cut.
const candidateLimit = 20

// Field selects which keyword column relatedness is scored on.
type Field string

const (
	FieldAuxKeywords Field = "aux_keywords"
	FieldKeywords    Field = "keywords"
)

// ParseField validates a configured field name. Empty selects
// FieldAuxKeywords.
func ParseField(s string) (Field, error) {
	switch Field(s) {
	case "", FieldAuxKeywords:
		return FieldAuxKeywords, nil
	case FieldKeywords:
		return FieldKeywords, nil
	default:
		return "", fmt.Errorf("unknown relatedness field %q", s)
	}
}

// Engine computes related ids.
type Engine struct {
	field Field
}

// New returns an Engine scoring on field.
func New(field Field) *Engine {
	if field == "" {
		field = FieldAuxKeywords
	}
	return &Engine{field: field}
}

// Field returns the keyword column the engine scores on.
func (e *Engine) Field() Field { return e.field }

// Compute returns the related ids of every record, keyed by record id.
// Records are ranked by overlap descending; equal overlaps keep the order of
// records. A record never relates to itself and zero-overlap records are
// never included.
func (e *Engine) Compute(records []qa.Record) map[string][]string {
	sets := make([]map[string]struct{}, len(records))
	for i, r := range records {
		sets[i] = tokenSet(e.tokens(r))
	}

	type candidate struct {
		id      string
		overlap int
	}

	out := make(map[string][]string, len(records))
	for i, a := range records {
		var candidates []candidate
		for j, b := range records {
			if a.ID == b.ID {
				continue
			}
			if n := Overlap(sets[i], sets[j]); n > 0 {
				candidates = append(candidates, candidate{id: b.ID, overlap: n})
			}
		}

		sort.SliceStable(candidates, func(x, y int) bool {
			return candidates[x].overlap > candidates[y].overlap
		})
		if len(candidates) > candidateLimit {
			candidates = candidates[:candidateLimit]
		}
		if len(candidates) > qa.MaxRelated {
			candidates = candidates[:qa.MaxRelated]
		}

		ids := make([]string, len(candidates))
		for k, c := range candidates {
			ids[k] = c.id
		}
		out[a.ID] = ids
	}
	return out
}

// Apply computes related ids and stores them on records in place.
func (e *Engine) Apply(records []qa.Record) {
	relations := e.Compute(records)
	for i := range records {
		records[i].Related = relations[records[i].ID]
	}
}

func (e *Engine) tokens(r qa.Record) []string {
	if e.field == FieldKeywords {
		return r.Keywords
	}
	return r.AuxKeywords
}

// Overlap counts the tokens present in both sets.
func Overlap(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			n++
		}
	}
	return n
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}
