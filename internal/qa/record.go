// Package qa defines the question/answer record persisted by the importer,
// the Slack message shape it is built from, and the helpers shared by the
// extraction and relatedness passes.
package qa

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxTextLength bounds question and answer text, counted in characters.
	MaxTextLength = 10000

	// MaxRelated is the maximum number of related ids kept per record.
	MaxRelated = 10
)

// Record is one answered question.
type Record struct {
	ID           string     `db:"id"            json:"id"`
	Question     string     `db:"question"      json:"question"`
	Answer       string     `db:"answer"        json:"answer"`
	UserQuestion string     `db:"user_question" json:"user_question"`
	UserAnswer   string     `db:"user_answer"   json:"user_answer"`
	Related      StringList `db:"related"       json:"related"`
	Keywords     StringList `db:"keywords"      json:"keywords"`
	AuxKeywords  StringList `db:"aux_keywords"  json:"aux_keywords"`
	Score        int        `db:"score"         json:"score"`
}

// NewManualRecord builds a record that did not come from an import: it gets a
// fresh timestamp id and no keywords or related ids.
func NewManualRecord(now time.Time, question, answer, user string) Record {
	return Record{
		ID:           TimestampID(now),
		Question:     Truncate(question, MaxTextLength),
		Answer:       Truncate(answer, MaxTextLength),
		UserQuestion: user,
		UserAnswer:   user,
		Related:      StringList{},
		Keywords:     StringList{},
		AuxKeywords:  StringList{},
	}
}

// TimestampID formats t the way Slack formats message timestamps.
func TimestampID(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/int(time.Microsecond))
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// IsShortcode reports whether s looks like a Slack emoji shortcode such as
// ":tada:".
func IsShortcode(s string) bool {
	return strings.HasPrefix(s, ":") && strings.HasSuffix(s, ":")
}

// CleanKeywords drops empty strings and emoji shortcodes, keeping order and
// duplicates.
func CleanKeywords(in []string) StringList {
	out := make(StringList, 0, len(in))
	for _, k := range in {
		if k == "" || IsShortcode(k) {
			continue
		}
		out = append(out, k)
	}
	return out
}
