// Package service is the read/write facade over the question store used by
// the HTTP layer and the CLI.
package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/edgard/slackqa/internal/errs"
	"github.com/edgard/slackqa/internal/qa"
	"github.com/edgard/slackqa/internal/search"
)

// Store is the subset of database.Store the service needs.
type Store interface {
	Ping(ctx context.Context) error
	CreateRecord(ctx context.Context, record qa.Record) error
	SearchSubstring(ctx context.Context, query string) ([]qa.Record, error)
	GetByIDs(ctx context.Context, ids []string) ([]qa.Record, error)
	Count(ctx context.Context) (int, error)
}

// Index is the subset of search.Index the service needs.
type Index interface {
	Index(r qa.Record) error
	Search(query string, limit int) ([]search.Hit, error)
}

// CreateRequest is a manually entered question and answer.
type CreateRequest struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer"   validate:"required"`
	User     string `json:"user"     validate:"required"`
}

// QueryService serves stored records.
type QueryService struct {
	store    Store
	index    Index
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a QueryService. index may be nil when full-text search is
// disabled.
func New(store Store, index Index, logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &QueryService{
		store:    store,
		index:    index,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("component", "query_service"),
		now:      time.Now,
	}
}

// Ping checks the store.
func (s *QueryService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Search returns records whose question, answer or keywords contain query,
// ignoring case. An empty query is a validation error.
func (s *QueryService) Search(ctx context.Context, query string) ([]qa.Record, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, errs.NewValidationError("search query cannot be empty", nil)
	}
	return s.store.SearchSubstring(ctx, query)
}

// FullTextEnabled reports whether FullText can be used.
func (s *QueryService) FullTextEnabled() bool {
	return s.index != nil
}

// FullText runs a ranked full-text query and returns the matching records
// best first.
func (s *QueryService) FullText(ctx context.Context, query string, limit int) ([]qa.Record, error) {
	if s.index == nil {
		return nil, errs.NewNotFoundError("full-text search is disabled")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.NewValidationError("search query cannot be empty", nil)
	}

	hits, err := s.index.Search(query, limit)
	if err != nil {
		return nil, errs.NewValidationError("invalid search query", err)
	}
	if len(hits) == 0 {
		return []qa.Record{}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return s.store.GetByIDs(ctx, ids)
}

// Related returns the records named by a comma-separated id list, in the
// order given.
func (s *QueryService) Related(ctx context.Context, ids string) ([]qa.Record, error) {
	list := SplitIDs(ids)
	if len(list) == 0 {
		return []qa.Record{}, nil
	}
	return s.store.GetByIDs(ctx, list)
}

// Count returns the number of stored records.
func (s *QueryService) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// Create stores a manually entered question. Keywords and related ids are
// left empty.
func (s *QueryService) Create(ctx context.Context, req CreateRequest) (qa.Record, error) {
	if err := s.validate.Struct(req); err != nil {
		return qa.Record{}, errs.NewValidationError("invalid question", err)
	}

	record := qa.NewManualRecord(s.now(), req.Question, req.Answer, req.User)
	if err := s.store.CreateRecord(ctx, record); err != nil {
		return qa.Record{}, err
	}

	if s.index != nil {
		if err := s.index.Index(record); err != nil {
			s.logger.WarnContext(ctx, "Failed to index created question", "id", record.ID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "Question created", "id", record.ID, "user", record.UserQuestion)
	return record, nil
}

// SplitIDs splits a comma-separated id list, trimming blanks.
func SplitIDs(ids string) []string {
	var out []string
	for _, id := range strings.Split(ids, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
