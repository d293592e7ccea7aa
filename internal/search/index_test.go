package search

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/slackqa/internal/qa"
)

func sampleRecords() []qa.Record {
	return []qa.Record{
		{
			ID:          "1.0",
			Question:    "How do I configure the Foo Bar client",
			Answer:      "Set FOO_BAR=1 in the environment",
			Keywords:    qa.StringList{"foo bar client", "configure"},
			AuxKeywords: qa.StringList{"configure", "set_up"},
		},
		{
			ID:          "2.0",
			Question:    "Where is the VPN guide",
			Answer:      "Check the wiki",
			Keywords:    qa.StringList{"vpn guide"},
			AuxKeywords: qa.StringList{},
		},
	}
}

func TestRebuildAndSearch(t *testing.T) {
	t.Parallel()

	idx, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	require.NoError(t, idx.Rebuild(sampleRecords()))
	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	hits, err := idx.Search("configure", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "1.0", hits[0].ID)

	hits, err = idx.Search("vpn", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "2.0", hits[0].ID)

	hits, err = idx.Search("kubernetes", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchMatchesInflectedWords(t *testing.T) {
	t.Parallel()

	idx, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	require.NoError(t, idx.Index(qa.Record{
		ID:       "3.0",
		Question: "Where are the kubernetes docs?",
		Answer:   "Configuring clients in the wiki.",
	}))

	for _, q := range []string{"kubernetes", "docs", "doc", "configuring", "configure", "clients", "wiki", "Question:kubernetes", "Answer:clients"} {
		t.Run(q, func(t *testing.T) {
			hits, err := idx.Search(q, 10)
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, "3.0", hits[0].ID)
		})
	}
}

func TestIndexReplacesRecord(t *testing.T) {
	t.Parallel()

	idx, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	r := sampleRecords()[1]
	require.NoError(t, idx.Index(r))
	r.Question = "Where is the printer"
	require.NoError(t, idx.Index(r))

	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	hits, err := idx.Search("printer", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestOpenOnDiskReopens(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "questions.bleve")
	idx, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, idx.Rebuild(sampleRecords()))
	require.NoError(t, idx.Close())

	idx, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}
