// Package api exposes the question store and the batch passes over HTTP.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/edgard/slackqa/internal/jobs"
	"github.com/edgard/slackqa/internal/logger"
	"github.com/edgard/slackqa/internal/pipeline"
	"github.com/edgard/slackqa/internal/qa"
	"github.com/edgard/slackqa/internal/service"
	"github.com/edgard/slackqa/internal/slack"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// maxSearchLimit caps the limit parameter of /v1/search.
const maxSearchLimit = 100

// Queries is the read/write surface over stored records.
type Queries interface {
	Ping(ctx context.Context) error
	Search(ctx context.Context, query string) ([]qa.Record, error)
	FullText(ctx context.Context, query string, limit int) ([]qa.Record, error)
	Related(ctx context.Context, ids string) ([]qa.Record, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, req service.CreateRequest) (qa.Record, error)
}

// Passes triggers the batch passes.
type Passes interface {
	Import(ctx context.Context) (pipeline.Stats, error)
	Relate(ctx context.Context) (jobs.RelateStats, error)
}

// Workspace reads channel data straight from Slack.
type Workspace interface {
	ChannelMembers(ctx context.Context, channelID string) ([]slack.Member, error)
	MonthMessages(ctx context.Context, channelID string, month time.Month, year int) ([]qa.Message, error)
}

// Server routes HTTP requests.
type Server struct {
	router    *mux.Router
	handler   http.Handler
	queries   Queries
	passes    Passes
	workspace Workspace
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewServer builds the router. Requests from allowedOrigins are accepted
// cross-origin; "*" allows any origin.
func NewServer(queries Queries, passes Passes, workspace Workspace, allowedOrigins []string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	s := &Server{
		router:    mux.NewRouter(),
		queries:   queries,
		passes:    passes,
		workspace: workspace,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    log.With("component", "api"),
	}
	s.registerRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})
	s.handler = logger.Middleware(s.logger)(c.Handler(s.router))
	return s
}

// Handler returns the root handler with CORS and request logging applied.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	// Registered on the root router: a method mismatch on a subrouter route
	// reports 404 instead of 405.
	s.router.HandleFunc("/v1/getQuestions/{query}", s.handleGetQuestions).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/search", s.handleSearch).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/totalQuestionsAvailable", s.handleTotal).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/getRelatedQuestions", s.handleRelated).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/createQuestion", s.handleCreate).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/updateDatabase", s.handleUpdateDatabase).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/updateRelatedDatabase", s.handleUpdateRelated).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/users/{channelID}", s.handleUsers).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/messages/{channelID}/{month}/{year}", s.handleMessages).Methods(http.MethodGet)
}
