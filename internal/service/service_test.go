package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/slackqa/internal/config"
	"github.com/edgard/slackqa/internal/database"
	"github.com/edgard/slackqa/internal/errs"
	"github.com/edgard/slackqa/internal/qa"
	"github.com/edgard/slackqa/internal/search"
)

func newStore(t *testing.T) database.Store {
	t.Helper()
	db, err := database.NewDB(config.DatabaseConfig{
		Driver: database.DialectSQLite,
		DSN:    filepath.Join(t.TempDir(), "service.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return database.NewStore(db, nil)
}

func newIndex(t *testing.T) *search.Index {
	t.Helper()
	idx, err := search.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func seed(t *testing.T, store database.Store, records ...qa.Record) {
	t.Helper()
	_, err := store.InsertRecords(context.Background(), records)
	require.NoError(t, err)
}

func imported(id, question, answer string, keywords ...string) qa.Record {
	return qa.Record{
		ID:           id,
		Question:     question,
		Answer:       answer,
		UserQuestion: "UQ",
		UserAnswer:   "UA",
		Related:      qa.StringList{},
		Keywords:     keywords,
		AuxKeywords:  qa.StringList{},
	}
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	seed(t, store,
		imported("1.0", "How do I reset my VPN token?", "Use the portal.", "vpn token"),
		imported("2.0", "Build fails on CI", "Clear the cache.", "ci"),
	)
	svc := New(store, nil, nil)

	got, err := svc.Search(context.Background(), "  VPN ")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1.0", got[0].ID)

	_, err = svc.Search(context.Background(), " ")
	assert.True(t, errs.Is(err, errs.CodeValidation))
}

func TestRelatedKeepsRequestOrder(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	seed(t, store,
		imported("1.0", "first", "a"),
		imported("2.0", "second", "b"),
		imported("3.0", "third", "c"),
	)
	svc := New(store, nil, nil)

	got, err := svc.Related(context.Background(), "3.0, 1.0,,missing")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "3.0", got[0].ID)
	assert.Equal(t, "1.0", got[1].ID)

	got, err = svc.Related(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreateStoresManualRecord(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	idx := newIndex(t)
	svc := New(store, idx, nil)
	svc.now = func() time.Time { return time.Unix(1700000000, 123456000) }
	ctx := context.Background()

	rec, err := svc.Create(ctx, CreateRequest{Question: "Where are the kubernetes docs?", Answer: "In the wiki.", User: "U1"})
	require.NoError(t, err)
	assert.Equal(t, "1700000000.123456", rec.ID)

	stored, err := store.GetByIDs(ctx, []string{rec.ID})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "U1", stored[0].UserQuestion)
	assert.Equal(t, "U1", stored[0].UserAnswer)
	assert.Empty(t, stored[0].Keywords)
	assert.Empty(t, stored[0].AuxKeywords)
	assert.Empty(t, stored[0].Related)

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	found, err := svc.FullText(ctx, "kubernetes", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, rec.ID, found[0].ID)

	_, err = svc.Create(ctx, CreateRequest{Question: "dup", Answer: "dup", User: "U1"})
	assert.True(t, errs.Is(err, errs.CodeDatabase))
}

func TestCreateValidates(t *testing.T) {
	t.Parallel()
	svc := New(newStore(t), nil, nil)

	tests := []struct {
		name string
		req  CreateRequest
	}{
		{name: "missing question", req: CreateRequest{Answer: "a", User: "u"}},
		{name: "missing answer", req: CreateRequest{Question: "q", User: "u"}},
		{name: "missing user", req: CreateRequest{Question: "q", Answer: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.req)
			assert.True(t, errs.Is(err, errs.CodeValidation), "got %v", err)
		})
	}
}

func TestFullTextRanksThroughStore(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	idx := newIndex(t)
	records := []qa.Record{
		imported("1.0", "How do I configure the proxy?", "Set HTTPS_PROXY.", "proxy"),
		imported("2.0", "Proxy errors on the build server", "Configure the proxy for the runner.", "proxy", "build server"),
		imported("3.0", "Unrelated lunch question", "Pizza.", "lunch"),
	}
	seed(t, store, records...)
	require.NoError(t, idx.Rebuild(records))
	svc := New(store, idx, nil)
	require.True(t, svc.FullTextEnabled())

	got, err := svc.FullText(context.Background(), "proxy", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	ids := []string{got[0].ID, got[1].ID}
	assert.ElementsMatch(t, []string{"1.0", "2.0"}, ids)

	got, err = svc.FullText(context.Background(), "nothingmatches", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFullTextDisabled(t *testing.T) {
	t.Parallel()
	svc := New(newStore(t), nil, nil)

	assert.False(t, svc.FullTextEnabled())
	_, err := svc.FullText(context.Background(), "x", 1)
	assert.True(t, errs.Is(err, errs.CodeNotFound))
}

func TestSplitIDs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b"}, SplitIDs(" a ,b,, "))
	assert.Nil(t, SplitIDs(""))
}
