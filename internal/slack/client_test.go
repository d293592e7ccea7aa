package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/slackqa/internal/config"
	"github.com/edgard/slackqa/internal/errs"
)

type fakeSlack struct {
	mu       sync.Mutex
	requests map[string][]map[string]string
	handlers map[string]func(form map[string]string) (int, any)
}

func newFakeSlack(t *testing.T) (*fakeSlack, *httptest.Server) {
	t.Helper()
	f := &fakeSlack{
		requests: make(map[string][]map[string]string),
		handlers: make(map[string]func(map[string]string) (int, any)),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form := make(map[string]string)
		for k := range r.Form {
			form[k] = r.Form.Get(k)
		}
		if form["token"] == "" {
			form["token"] = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		method := r.URL.Path[1:]
		// slack-go omits search paging values equal to the API defaults.
		if method == "search.messages" && form["page"] == "" {
			form["page"] = "1"
		}

		f.mu.Lock()
		f.requests[method] = append(f.requests[method], form)
		handler := f.handlers[method]
		f.mu.Unlock()

		if handler == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		status, body := handler(form)
		if status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "0")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeSlack) calls(method string) []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[method]
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(config.SlackConfig{
		Token:           "xoxb-bot",
		SearchToken:     "xoxp-user",
		ChannelID:       "C1",
		SearchChannel:   "sos_ts",
		AnswerReaction:  "green_check_mark",
		DoneReaction:    "done1",
		HistoryPageSize: 500,
		SearchPageSize:  100,
		MaxRetries:      2,
		APIURL:          srv.URL,
	}, nil)
}

func TestHistoryFollowsCursor(t *testing.T) {
	t.Parallel()
	f, srv := newFakeSlack(t)
	f.handlers["conversations.history"] = func(form map[string]string) (int, any) {
		if form["cursor"] == "" {
			return http.StatusOK, map[string]any{
				"ok":       true,
				"has_more": true,
				"messages": []map[string]any{{
					"type": "message", "user": "U1", "text": "first", "ts": "1700000000.000100",
					"reactions": []map[string]any{{"name": "done1", "count": 1}},
				}},
				"response_metadata": map[string]any{"next_cursor": "page2"},
			}
		}
		return http.StatusOK, map[string]any{
			"ok":       true,
			"has_more": false,
			"messages": []map[string]any{{
				"type": "message", "subtype": "channel_join", "user": "U2", "text": "joined", "ts": "1700000000.000200",
			}},
		}
	}

	start := time.Unix(1699900000, 0)
	end := time.Unix(1700100000, 999999000)
	messages, err := newTestClient(srv).History(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, "first", messages[0].Text)
	assert.True(t, messages[0].HasReaction("done1"))
	assert.Equal(t, "channel_join", messages[1].Subtype)

	calls := f.calls("conversations.history")
	require.Len(t, calls, 2)
	assert.Equal(t, "C1", calls[0]["channel"])
	assert.Equal(t, "1699900000.000000", calls[0]["oldest"])
	assert.Equal(t, "1700100000.999999", calls[0]["latest"])
	assert.Equal(t, "500", calls[0]["limit"])
	assert.Equal(t, "page2", calls[1]["cursor"])
}

func TestSearchAnswersWalksAllPages(t *testing.T) {
	t.Parallel()
	f, srv := newFakeSlack(t)
	f.handlers["search.messages"] = func(form map[string]string) (int, any) {
		page := form["page"]
		return http.StatusOK, map[string]any{
			"ok": true,
			"messages": map[string]any{
				"matches": []map[string]any{{
					"user": "UA", "text": "answer on page " + page, "ts": "1700000001.000200",
					"permalink": "https://acme.slack.com/archives/C1/p1700000001000200?thread_ts=1700000000.000100&cid=C1",
				}},
				"paging": map[string]any{"count": 100, "total": 2, "page": 1, "pages": 2},
			},
		}
	}

	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 8, 23, 59, 59, 0, time.UTC)
	c := newTestClient(srv)
	answers, err := c.SearchAnswers(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.Equal(t, "answer on page 1", answers[0].Text)
	assert.Equal(t, "answer on page 2", answers[1].Text)

	calls := f.calls("search.messages")
	require.Len(t, calls, 2)
	assert.Equal(t, "in:sos_ts is:thread has::green_check_mark: before:2024-03-08 after:2024-03-01", calls[0]["query"])
	assert.Equal(t, "xoxp-user", calls[0]["token"])
	assert.Equal(t, "1", calls[0]["page"])
	assert.Equal(t, "2", calls[1]["page"])
}

func TestRateLimitedCallsAreRetried(t *testing.T) {
	t.Parallel()
	f, srv := newFakeSlack(t)
	var attempts atomic.Int32
	f.handlers["conversations.history"] = func(map[string]string) (int, any) {
		if attempts.Add(1) == 1 {
			return http.StatusTooManyRequests, map[string]any{"ok": false, "error": "ratelimited"}
		}
		return http.StatusOK, map[string]any{"ok": true, "messages": []any{}}
	}

	_, err := newTestClient(srv).History(context.Background(), time.Unix(0, 0), time.Unix(1, 0))
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestSourceErrorsAreCoded(t *testing.T) {
	t.Parallel()
	f, srv := newFakeSlack(t)
	f.handlers["conversations.history"] = func(map[string]string) (int, any) {
		return http.StatusOK, map[string]any{"ok": false, "error": "channel_not_found"}
	}

	_, err := newTestClient(srv).History(context.Background(), time.Unix(0, 0), time.Unix(1, 0))
	require.Error(t, err)
	assert.Equal(t, errs.CodeSource, errs.Code(err))
}

func TestChannelMembers(t *testing.T) {
	t.Parallel()
	f, srv := newFakeSlack(t)
	f.handlers["conversations.members"] = func(map[string]string) (int, any) {
		return http.StatusOK, map[string]any{"ok": true, "members": []string{"U1", "U3"}}
	}
	f.handlers["users.list"] = func(map[string]string) (int, any) {
		return http.StatusOK, map[string]any{
			"ok": true,
			"members": []map[string]any{
				{"id": "U1", "name": "ana", "real_name": "Ana", "profile": map[string]any{"display_name": "ana.b"}},
				{"id": "U2", "name": "bo", "real_name": "Bo"},
				{"id": "U3", "name": "bot", "is_bot": true},
			},
		}
	}

	members, err := newTestClient(srv).ChannelMembers(context.Background(), "C1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "U1", members[0].ID)
	assert.Equal(t, "ana.b", members[0].DisplayName)
	assert.True(t, members[1].IsBot)
}

func TestMonthBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		month   time.Month
		year    int
		lastDay int
	}{
		{month: time.February, year: 2024, lastDay: 29},
		{month: time.February, year: 2023, lastDay: 28},
		{month: time.February, year: 1900, lastDay: 28},
		{month: time.February, year: 2000, lastDay: 29},
		{month: time.December, year: 2023, lastDay: 31},
		{month: time.April, year: 2023, lastDay: 30},
	}
	for _, tt := range tests {
		start, end := MonthBounds(tt.month, tt.year, time.UTC)
		assert.Equal(t, 1, start.Day())
		assert.Equal(t, tt.month, end.Month())
		assert.Equal(t, tt.lastDay, end.Day())
		assert.Equal(t, 23, end.Hour())
		assert.Equal(t, 999999000, end.Nanosecond())
	}
}
