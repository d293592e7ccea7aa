// Package keywords extracts keyword phrases and synonym sets from question
// text. Extraction is pure: it never fails and never touches the network
// unless the configured Lexicon does.
package keywords

import (
	"regexp"
	"sort"
	"strings"

	"github.com/edgard/slackqa/internal/qa"
)

// fragmentSplit cuts text at every run of lowercase words, leaving the
// capitalised stretches ("Foo Bar") as fragments.
var fragmentSplit = regexp.MustCompile(`\s+[a-z][a-z\s]*`)

// Extractor produces keywords and auxiliary keywords for a piece of text.
type Extractor struct {
	lexicon Lexicon
}

// NewExtractor returns an Extractor drawing synonyms from lexicon. A nil
// lexicon disables synonyms.
func NewExtractor(lexicon Lexicon) *Extractor {
	if lexicon == nil {
		lexicon = NoLexicon{}
	}
	return &Extractor{lexicon: lexicon}
}

// Extract returns the ranked keyword phrases followed by the capitalised
// fragments of text, and the synonym set of the lowest ranked phrase.
func (e *Extractor) Extract(text string) (keywords []string, aux []string) {
	return e.extract(text, true)
}

// ExtractMessage is Extract for a chat message. Messages with a subtype
// (joins, bot posts, edits) contribute no ranked phrases.
func (e *Extractor) ExtractMessage(m qa.Message) (keywords []string, aux []string) {
	return e.extract(m.Text, m.Subtype == "")
}

func (e *Extractor) extract(text string, rank bool) ([]string, []string) {
	var phrases []string
	if rank {
		phrases = rankPhrases(text)
	}

	aux := []string{}
	if len(phrases) > 0 {
		aux = e.synonyms(phrases[len(phrases)-1])
	}

	all := make([]string, 0, len(phrases)+4)
	all = append(all, phrases...)
	for _, frag := range fragmentSplit.Split(text, -1) {
		all = append(all, strings.ToLower(frag))
	}

	return qa.CleanKeywords(all), aux
}

func (e *Extractor) synonyms(phrase string) []string {
	seen := make(map[string]struct{})
	for _, sense := range e.lexicon.Senses(phrase) {
		for _, lemma := range sense {
			if lemma != "" {
				seen[lemma] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for lemma := range seen {
		out = append(out, lemma)
	}
	sort.Strings(out)
	return out
}
