package qa

import (
	"net/url"
	"strings"
)

// Reaction is an emoji reaction on a message.
type Reaction struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Message is a chat message as returned by the message source.
type Message struct {
	Text            string     `json:"text"`
	User            string     `json:"user"`
	Timestamp       string     `json:"ts"`
	ThreadTimestamp string     `json:"thread_ts,omitempty"`
	Permalink       string     `json:"permalink,omitempty"`
	Subtype         string     `json:"subtype,omitempty"`
	Reactions       []Reaction `json:"reactions,omitempty"`
}

// HasReaction reports whether the message carries the named reaction.
func (m Message) HasReaction(name string) bool {
	for _, r := range m.Reactions {
		if r.Name == name {
			return true
		}
	}
	return false
}

// PermalinkThreadTS returns the thread_ts query value of a reply permalink,
// e.g. "1700000000.000100" for
// ".../p1700000001000200?thread_ts=1700000000.000100&cid=C1".
func PermalinkThreadTS(permalink string) (string, bool) {
	const key = "thread_ts="
	idx := strings.Index(permalink, key)
	if idx < 0 {
		return "", false
	}
	value := permalink[idx+len(key):]
	if end := strings.IndexAny(value, "&#"); end >= 0 {
		value = value[:end]
	}
	if unescaped, err := url.QueryUnescape(value); err == nil {
		value = unescaped
	}
	if value == "" {
		return "", false
	}
	return value, true
}
