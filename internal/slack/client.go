// Package slack reads questions, accepted answers and channel members from a
// Slack workspace.
package slack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/edgard/slackqa/internal/config"
	"github.com/edgard/slackqa/internal/errs"
	"github.com/edgard/slackqa/internal/qa"
)

const usersPageSize = 200

// Member is a workspace user who belongs to a channel.
type Member struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	RealName    string `json:"real_name"`
	DisplayName string `json:"display_name"`
	Title       string `json:"title,omitempty"`
	Image       string `json:"image,omitempty"`
	IsBot       bool   `json:"is_bot"`
	Deleted     bool   `json:"deleted"`
}

// Client wraps two Slack API clients: the bot token for channel reads and a
// user token for search, which bot tokens cannot use.
type Client struct {
	api            *slack.Client
	searchAPI      *slack.Client
	channelID      string
	searchChannel  string
	answerReaction string
	historyPage    int
	searchPage     int
	maxRetries     int
	logger         *slog.Logger
}

// NewClient creates a Client from configuration.
func NewClient(cfg config.SlackConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var opts []slack.Option
	if cfg.APIURL != "" {
		apiURL := cfg.APIURL
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}

	searchToken := cfg.SearchToken
	if searchToken == "" {
		searchToken = cfg.Token
	}

	return &Client{
		api:            slack.New(cfg.Token, opts...),
		searchAPI:      slack.New(searchToken, opts...),
		channelID:      cfg.ChannelID,
		searchChannel:  cfg.SearchChannel,
		answerReaction: cfg.AnswerReaction,
		historyPage:    cfg.HistoryPageSize,
		searchPage:     cfg.SearchPageSize,
		maxRetries:     cfg.MaxRetries,
		logger:         logger.With("component", "slack"),
	}
}

// History returns every message posted to the question channel between
// start and end inclusive.
func (c *Client) History(ctx context.Context, start, end time.Time) ([]qa.Message, error) {
	return c.history(ctx, c.channelID, start, end)
}

// MonthMessages returns every message posted to channelID during the given
// calendar month, in local time.
func (c *Client) MonthMessages(ctx context.Context, channelID string, month time.Month, year int) ([]qa.Message, error) {
	start, end := MonthBounds(month, year, time.Local)
	return c.history(ctx, channelID, start, end)
}

// MonthBounds returns the first and the last instant of a calendar month.
func MonthBounds(month time.Month, year int, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0).Add(-time.Microsecond)
	return start, end
}

func (c *Client) history(ctx context.Context, channelID string, start, end time.Time) ([]qa.Message, error) {
	params := &slack.GetConversationHistoryParameters{
		ChannelID:          channelID,
		Oldest:             qa.TimestampID(start),
		Latest:             qa.TimestampID(end),
		Inclusive:          true,
		Limit:              c.historyPage,
		IncludeAllMetadata: true,
	}

	var messages []qa.Message
	for page := 1; ; page++ {
		var resp *slack.GetConversationHistoryResponse
		err := c.withRetry(ctx, "conversations.history", func() error {
			var err error
			resp, err = c.api.GetConversationHistoryContext(ctx, params)
			return err
		})
		if err != nil {
			return nil, errs.NewSourceError(fmt.Sprintf("failed to read history of %s", channelID), err)
		}

		for _, m := range resp.Messages {
			messages = append(messages, fromMessage(m))
		}
		c.logger.DebugContext(ctx, "Fetched history page", "channel", channelID, "page", page, "messages", len(resp.Messages))

		if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" {
			break
		}
		params.Cursor = resp.ResponseMetaData.NextCursor
	}
	return messages, nil
}

// SearchQuery builds the search that finds accepted thread answers posted
// between start and end.
func (c *Client) SearchQuery(start, end time.Time) string {
	return fmt.Sprintf("in:%s is:thread has::%s: before:%s after:%s",
		c.searchChannel, c.answerReaction, end.Format(time.DateOnly), start.Format(time.DateOnly))
}

// SearchAnswers returns every accepted answer found by SearchQuery, walking
// all result pages.
func (c *Client) SearchAnswers(ctx context.Context, start, end time.Time) ([]qa.Message, error) {
	query := c.SearchQuery(start, end)
	params := slack.NewSearchParameters()
	params.Count = c.searchPage

	var answers []qa.Message
	for page, pages := 1, 1; page <= pages; page++ {
		params.Page = page

		var result *slack.SearchMessages
		err := c.withRetry(ctx, "search.messages", func() error {
			var err error
			result, err = c.searchAPI.SearchMessagesContext(ctx, query, params)
			return err
		})
		if err != nil {
			return nil, errs.NewSourceError("failed to search answers", err)
		}

		for _, m := range result.Matches {
			answers = append(answers, qa.Message{
				Text:      m.Text,
				User:      m.User,
				Timestamp: m.Timestamp,
				Permalink: m.Permalink,
			})
		}
		pages = result.Paging.Pages
		c.logger.DebugContext(ctx, "Fetched search page", "page", page, "pages", pages, "matches", len(result.Matches))
	}
	return answers, nil
}

// ChannelMembers returns the profiles of every member of channelID.
func (c *Client) ChannelMembers(ctx context.Context, channelID string) ([]Member, error) {
	memberIDs := make(map[string]bool)
	params := &slack.GetUsersInConversationParameters{ChannelID: channelID, Limit: usersPageSize}
	for {
		var (
			ids    []string
			cursor string
		)
		err := c.withRetry(ctx, "conversations.members", func() error {
			var err error
			ids, cursor, err = c.api.GetUsersInConversationContext(ctx, params)
			return err
		})
		if err != nil {
			return nil, errs.NewSourceError(fmt.Sprintf("failed to list members of %s", channelID), err)
		}
		for _, id := range ids {
			memberIDs[id] = true
		}
		if cursor == "" {
			break
		}
		params.Cursor = cursor
	}

	var users []slack.User
	err := c.withRetry(ctx, "users.list", func() error {
		var err error
		users, err = c.api.GetUsersContext(ctx, slack.GetUsersOptionLimit(usersPageSize))
		return err
	})
	if err != nil {
		return nil, errs.NewSourceError("failed to list users", err)
	}

	members := make([]Member, 0, len(memberIDs))
	for _, u := range users {
		if !memberIDs[u.ID] {
			continue
		}
		members = append(members, Member{
			ID:          u.ID,
			Name:        u.Name,
			RealName:    u.RealName,
			DisplayName: u.Profile.DisplayName,
			Title:       u.Profile.Title,
			Image:       u.Profile.Image72,
			IsBot:       u.IsBot,
			Deleted:     u.Deleted,
		})
	}
	return members, nil
}

// withRetry runs call, sleeping and retrying while Slack reports a rate
// limit, at most maxRetries times.
func (c *Client) withRetry(ctx context.Context, method string, call func() error) error {
	for attempt := 0; ; attempt++ {
		err := call()
		if err == nil {
			return nil
		}

		var rateLimited *slack.RateLimitedError
		if !errors.As(err, &rateLimited) || attempt >= c.maxRetries {
			return err
		}

		c.logger.WarnContext(ctx, "Slack rate limited, retrying",
			"method", method, "attempt", attempt+1, "retry_after", rateLimited.RetryAfter)

		timer := time.NewTimer(rateLimited.RetryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func fromMessage(m slack.Message) qa.Message {
	msg := qa.Message{
		Text:            m.Text,
		User:            m.User,
		Timestamp:       m.Timestamp,
		ThreadTimestamp: m.ThreadTimestamp,
		Subtype:         m.SubType,
	}
	for _, r := range m.Reactions {
		msg.Reactions = append(msg.Reactions, qa.Reaction{Name: r.Name, Count: r.Count})
	}
	return msg
}
