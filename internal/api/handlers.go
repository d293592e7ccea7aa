package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/edgard/slackqa/internal/errs"
	"github.com/edgard/slackqa/internal/qa"
	"github.com/edgard/slackqa/internal/service"
	"github.com/edgard/slackqa/internal/slack"
)

type relatedRequest struct {
	IDs string `json:"ids" validate:"required"`
}

type relatedResponse struct {
	Status  int         `json:"status"`
	Related []qa.Record `json:"related"`
}

type statusResponse struct {
	Status int    `json:"status"`
	ID     string `json:"id,omitempty"`
	Result any    `json:"result,omitempty"`
}

type usersResponse struct {
	Channel []slack.Member `json:"channel"`
}

type messagesResponse struct {
	AllMessages []qa.Message `json:"all_messages"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, true)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.queries.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Status: http.StatusServiceUnavailable,
			Code:   errs.Code(err),
			Error:  "database unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK})
}

func (s *Server) handleGetQuestions(w http.ResponseWriter, r *http.Request) {
	records, err := s.queries.Search(r.Context(), mux.Vars(r)["query"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(records))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSearchLimit {
			s.writeError(w, r, errs.NewValidationError("limit must be between 1 and 100", err))
			return
		}
		limit = n
	}

	records, err := s.queries.FullText(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(records))
}

func (s *Server) handleTotal(w http.ResponseWriter, r *http.Request) {
	n, err := s.queries.Count(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	var req relatedRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	records, err := s.queries.Related(r.Context(), req.IDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, relatedResponse{Status: http.StatusOK, Related: nonNil(records)})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	record, err := s.queries.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK, ID: record.ID})
}

func (s *Server) handleUpdateDatabase(w http.ResponseWriter, r *http.Request) {
	stats, err := s.passes.Import(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK, Result: stats})
}

func (s *Server) handleUpdateRelated(w http.ResponseWriter, r *http.Request) {
	stats, err := s.passes.Relate(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK, Result: stats})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	members, err := s.workspace.ChannelMembers(r.Context(), mux.Vars(r)["channelID"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if members == nil {
		members = []slack.Member{}
	}
	writeJSON(w, http.StatusOK, usersResponse{Channel: members})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	month, err := parseMonth(vars["month"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	year, err := strconv.Atoi(vars["year"])
	if err != nil || year < 1970 || year > 9999 {
		s.writeError(w, r, errs.NewValidationError("invalid year "+strconv.Quote(vars["year"]), err))
		return
	}

	messages, err := s.workspace.MonthMessages(r.Context(), vars["channelID"], month, year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if messages == nil {
		messages = []qa.Message{}
	}
	writeJSON(w, http.StatusOK, messagesResponse{AllMessages: messages})
}

// parseMonth accepts an English month name, case-insensitively, or a number
// from 1 to 12.
func parseMonth(s string) (time.Month, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= 12 {
			return time.Month(n), nil
		}
		return 0, errs.NewValidationError("invalid month "+strconv.Quote(s), nil)
	}
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(m.String(), s) {
			return m, nil
		}
	}
	return 0, errs.NewValidationError("invalid month "+strconv.Quote(s), nil)
}

func nonNil(records []qa.Record) []qa.Record {
	if records == nil {
		return []qa.Record{}
	}
	return records
}
