package keywords

import (
	"regexp"
	"sort"
	"strings"
)

// tokenPattern splits text into runs of word characters and runs of
// punctuation, the same way a word-punct tokenizer does.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+|[^\p{L}\p{N}_\s]+`)

var wordToken = regexp.MustCompile(`^[\p{L}\p{N}_]+$`)

// rankPhrases runs RAKE over text and returns the candidate phrases ordered
// by score, highest first. Ties are broken by phrase text in descending
// order. A phrase that occurs several times is returned once per occurrence.
func rankPhrases(text string) []string {
	phrases := candidatePhrases(text)
	if len(phrases) == 0 {
		return nil
	}

	freq := make(map[string]int)
	degree := make(map[string]int)
	for _, p := range phrases {
		for _, w := range p {
			freq[w]++
			degree[w] += len(p)
		}
	}

	type scored struct {
		text  string
		score float64
	}
	ranked := make([]scored, 0, len(phrases))
	for _, p := range phrases {
		var score float64
		for _, w := range p {
			score += float64(degree[w]) / float64(freq[w])
		}
		ranked = append(ranked, scored{text: strings.Join(p, " "), score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].text > ranked[j].text
	})

	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.text
	}
	return out
}

// candidatePhrases splits lowercased text into maximal runs of words that are
// neither stopwords nor punctuation.
func candidatePhrases(text string) [][]string {
	var (
		phrases [][]string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			phrases = append(phrases, current)
			current = nil
		}
	}

	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if !wordToken.MatchString(tok) {
			flush()
			continue
		}
		if _, stop := stopwordSet[tok]; stop {
			flush()
			continue
		}
		current = append(current, tok)
	}
	flush()
	return phrases
}
