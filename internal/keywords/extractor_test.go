package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/slackqa/internal/qa"
)

type fakeLexicon map[string][][]string

func (f fakeLexicon) Senses(term string) [][]string { return f[term] }

func TestRankPhrases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "longer phrase scores higher",
			text: "How do I configure the Foo Bar client",
			want: []string{"foo bar client", "configure"},
		},
		{
			name: "ties ordered by phrase descending",
			text: "alpha beta. gamma delta",
			want: []string{"gamma delta", "alpha beta"},
		},
		{
			name: "repeated phrases kept",
			text: "cache. cache",
			want: []string{"cache", "cache"},
		},
		{
			name: "only stopwords",
			text: "how do I do it?",
			want: nil,
		},
		{
			name: "punctuation splits phrases",
			text: "restart nginx, then reload",
			want: []string{"restart nginx", "reload"},
		},
		{
			name: "multi-character punctuation splits phrases",
			text: "wait... restart nginx",
			want: []string{"restart nginx", "wait"},
		},
		{
			name: "newlines do not split phrases",
			text: "restart nginx\nreload cache",
			want: []string{"restart nginx reload cache"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, rankPhrases(tt.text))
		})
	}
}

func TestExtractExample(t *testing.T) {
	t.Parallel()

	lex, err := Builtin()
	require.NoError(t, err)

	keywords, aux := NewExtractor(lex).Extract("How do I configure the Foo Bar client")

	assert.Equal(t, []string{"foo bar client", "configure", "how", "i", "foo bar"}, keywords)
	assert.Equal(t, []string{"configure", "design", "plan", "set_up"}, aux)
}

func TestExtractUsesLastPhraseForSynonyms(t *testing.T) {
	t.Parallel()

	lex := fakeLexicon{
		"foo bar client": {{"should", "not", "appear"}},
		"configure":      {{"set_up", "configure"}, {"configure", "plan"}},
	}
	_, aux := NewExtractor(lex).Extract("How do I configure the Foo Bar client")
	assert.Equal(t, []string{"configure", "plan", "set_up"}, aux)
}

func TestExtractDropsEmptyAndShortcodes(t *testing.T) {
	t.Parallel()

	texts := []string{
		":tada: deploy",
		"see :white_check_mark: above",
		"",
		"   ",
		"ALL CAPS :x:",
	}
	ext := NewExtractor(nil)
	for _, text := range texts {
		keywords, aux := ext.Extract(text)
		for _, k := range keywords {
			assert.NotEmpty(t, k, "text %q", text)
			assert.False(t, qa.IsShortcode(k), "text %q produced %q", text, k)
		}
		assert.NotNil(t, aux)
	}
}

func TestExtractNoSensesGivesEmptyAux(t *testing.T) {
	t.Parallel()

	_, aux := NewExtractor(NoLexicon{}).Extract("zzyzx quux")
	assert.Empty(t, aux)
}

func TestExtractMessageSkipsRankingForSubtypes(t *testing.T) {
	t.Parallel()

	lex, err := Builtin()
	require.NoError(t, err)
	ext := NewExtractor(lex)

	keywords, aux := ext.ExtractMessage(qa.Message{
		Text:    "How do I configure the Foo Bar client",
		Subtype: "bot_message",
	})
	assert.Equal(t, []string{"how", "i", "foo bar"}, keywords)
	assert.Empty(t, aux)

	keywords, _ = ext.ExtractMessage(qa.Message{Text: "How do I configure the Foo Bar client"})
	assert.Contains(t, keywords, "foo bar client")
}

func TestThesaurusBaseForms(t *testing.T) {
	t.Parallel()

	lex, err := Builtin()
	require.NoError(t, err)
	assert.Positive(t, lex.Len())

	tests := []struct {
		term  string
		found bool
	}{
		{term: "server", found: true},
		{term: "servers", found: true},
		{term: "configured", found: true},
		{term: "Deploying", found: true},
		{term: "queries", found: true},
		{term: "foo bar client", found: false},
		{term: "", found: false},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			t.Parallel()
			senses := lex.Senses(tt.term)
			if tt.found {
				assert.NotEmpty(t, senses)
			} else {
				assert.Empty(t, senses)
			}
		})
	}
}

func TestThesaurusSensesAreCopies(t *testing.T) {
	t.Parallel()

	lex, err := ParseThesaurus([]byte("server:\n  - [server, host]\n"))
	require.NoError(t, err)

	senses := lex.Senses("server")
	senses[0][0] = "changed"
	assert.Equal(t, [][]string{{"server", "host"}}, lex.Senses("server"))
}

func TestParseThesaurusRejectsInvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := ParseThesaurus([]byte("server: [unterminated"))
	assert.Error(t, err)
}
