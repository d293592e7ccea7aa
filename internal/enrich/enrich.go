// Package enrich pairs channel questions with their accepted thread answers
// and turns each pair into a keyword-annotated record.
package enrich

import (
	"github.com/edgard/slackqa/internal/qa"
)

// DefaultDoneReaction marks a question that should not be imported.
const DefaultDoneReaction = "done1"

// KeywordExtractor extracts keywords from a message.
type KeywordExtractor interface {
	ExtractMessage(m qa.Message) (keywords []string, aux []string)
}

// Enricher matches questions to answers.
type Enricher struct {
	extractor    KeywordExtractor
	doneReaction string
}

// New returns an Enricher. An empty doneReaction selects DefaultDoneReaction.
func New(extractor KeywordExtractor, doneReaction string) *Enricher {
	if doneReaction == "" {
		doneReaction = DefaultDoneReaction
	}
	return &Enricher{extractor: extractor, doneReaction: doneReaction}
}

// Enrich returns one record per question that has a matching answer, in
// question order. Questions marked done and questions without an answer are
// dropped.
func (e *Enricher) Enrich(questions, answers []qa.Message) []qa.Record {
	records := make([]qa.Record, 0, len(questions))
	for _, q := range questions {
		if q.HasReaction(e.doneReaction) {
			continue
		}
		answer, ok := Match(q, answers)
		if !ok {
			continue
		}
		keywords, aux := e.extractor.ExtractMessage(q)
		if aux == nil {
			aux = []string{}
		}
		records = append(records, qa.Record{
			ID:           q.Timestamp,
			Question:     qa.Truncate(q.Text, qa.MaxTextLength),
			Answer:       qa.Truncate(answer.Text, qa.MaxTextLength),
			UserQuestion: q.User,
			UserAnswer:   answer.User,
			Related:      qa.StringList{},
			Keywords:     qa.CleanKeywords(keywords),
			AuxKeywords:  aux,
		})
	}
	return records
}

// Match finds the answer for question q. An answer whose permalink equals
// the question's wins; otherwise the first answer whose permalink points at
// the question's thread. A question without a thread timestamp is its own
// thread root, so its message timestamp stands in.
func Match(q qa.Message, answers []qa.Message) (qa.Message, bool) {
	if q.Permalink != "" {
		for _, a := range answers {
			if a.Permalink == q.Permalink {
				return a, true
			}
		}
	}

	threadTS := q.ThreadTimestamp
	if threadTS == "" {
		threadTS = q.Timestamp
	}
	if threadTS == "" {
		return qa.Message{}, false
	}
	for _, a := range answers {
		if ts, ok := qa.PermalinkThreadTS(a.Permalink); ok && ts == threadTS {
			return a, true
		}
	}
	return qa.Message{}, false
}
