package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/slackqa/internal/config"
)

func TestNewWithoutTokenIsNop(t *testing.T) {
	t.Parallel()

	n, err := New(config.TelegramConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, n)
	assert.NoError(t, n.Notify(context.Background(), "ignored"))
}

func TestNewTelegramValidates(t *testing.T) {
	t.Parallel()

	_, err := NewTelegram("", 1, nil)
	assert.Error(t, err)
	_, err = NewTelegram("123:abc", 0, nil)
	assert.Error(t, err)
}

type sentMessage struct {
	path   string
	chatID string
	text   string
}

func newTelegramServer(t *testing.T) (*httptest.Server, func() sentMessage) {
	t.Helper()
	var (
		mu   sync.Mutex
		last sentMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		mu.Lock()
		last = sentMessage{path: r.URL.Path, chatID: r.FormValue("chat_id"), text: r.FormValue("text")}
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv, func() sentMessage {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func TestTelegramNotifySendsMessage(t *testing.T) {
	t.Parallel()

	srv, sent := newTelegramServer(t)
	n, err := New(config.TelegramConfig{Token: "123:abc", ChatID: 42}, nil, bot.WithServerURL(srv.URL))
	require.NoError(t, err)
	require.NoError(t, n.Notify(context.Background(), strings.Repeat("x", maxMessageLength+10)))

	msg := sent()
	assert.True(t, strings.HasSuffix(msg.path, "/sendMessage"), msg.path)
	assert.Equal(t, "42", msg.chatID)
	assert.Len(t, msg.text, maxMessageLength)
	assert.True(t, strings.HasSuffix(msg.text, "..."))
}

func TestTelegramNotifyTruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	srv, sent := newTelegramServer(t)
	n, err := NewTelegram("123:abc", 42, nil, bot.WithServerURL(srv.URL))
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), strings.Repeat("é", maxMessageLength)))
	assert.Equal(t, strings.Repeat("é", maxMessageLength), sent().text)

	require.NoError(t, n.Notify(context.Background(), strings.Repeat("é", maxMessageLength+1)))
	text := sent().text
	assert.True(t, utf8.ValidString(text))
	assert.Equal(t, maxMessageLength, utf8.RuneCountInString(text))
	assert.Equal(t, strings.Repeat("é", maxMessageLength-3)+"...", text)
}

func TestTelegramNotifyReportsFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	t.Cleanup(srv.Close)

	n, err := NewTelegram("123:abc", 42, nil, bot.WithServerURL(srv.URL))
	require.NoError(t, err)
	assert.Error(t, n.Notify(context.Background(), "hello"))
}
