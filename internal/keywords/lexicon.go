package keywords

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Lexicon looks up the senses of a term. Each sense is a list of lemma
// names; collocations use underscores ("set_up").
type Lexicon interface {
	Senses(term string) [][]string
}

// NoLexicon knows no senses.
type NoLexicon struct{}

// Senses implements Lexicon.
func (NoLexicon) Senses(string) [][]string { return nil }

//go:embed thesaurus.yaml
var thesaurusYAML []byte

// Thesaurus is a Lexicon backed by an in-memory table keyed by lemma.
type Thesaurus struct {
	entries map[string][][]string
}

var (
	builtinOnce sync.Once
	builtin     *Thesaurus
	builtinErr  error
)

// Builtin returns the thesaurus embedded in the binary.
func Builtin() (*Thesaurus, error) {
	builtinOnce.Do(func() {
		builtin, builtinErr = ParseThesaurus(thesaurusYAML)
	})
	return builtin, builtinErr
}

// ParseThesaurus reads a YAML document mapping lemmas to lists of senses.
func ParseThesaurus(data []byte) (*Thesaurus, error) {
	raw := make(map[string][][]string)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse thesaurus: %w", err)
	}
	entries := make(map[string][][]string, len(raw))
	for lemma, senses := range raw {
		entries[lemmaKey(lemma)] = senses
	}
	return &Thesaurus{entries: entries}, nil
}

// Senses implements Lexicon. Inflected forms fall back to their base form.
func (t *Thesaurus) Senses(term string) [][]string {
	key := lemmaKey(term)
	if key == "" {
		return nil
	}
	for _, candidate := range baseForms(key) {
		if senses, ok := t.entries[candidate]; ok {
			out := make([][]string, len(senses))
			for i, s := range senses {
				out[i] = append([]string(nil), s...)
			}
			return out
		}
	}
	return nil
}

// Len returns the number of lemmas in the thesaurus.
func (t *Thesaurus) Len() int { return len(t.entries) }

func lemmaKey(term string) string {
	return strings.ToLower(strings.Join(strings.Fields(term), "_"))
}

// baseForms returns key followed by the forms obtained by stripping common
// English inflections.
func baseForms(key string) []string {
	forms := []string{key}
	add := func(suffix, replacement string) {
		if strings.HasSuffix(key, suffix) && len(key) > len(suffix)+1 {
			forms = append(forms, strings.TrimSuffix(key, suffix)+replacement)
		}
	}
	add("ies", "y")
	add("es", "")
	add("s", "")
	add("ing", "")
	add("ing", "e")
	add("ed", "")
	add("ed", "e")
	return forms
}
