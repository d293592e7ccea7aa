package config

import "time"

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultHTTPAddr            = ":8000"
	DefaultHTTPReadTimeout     = 15 * time.Second
	DefaultHTTPWriteTimeout    = 10 * time.Minute // updateDatabase runs a full import inline
	DefaultHTTPShutdownTimeout = 10 * time.Second

	DefaultDBDriver          = "sqlite"
	DefaultDBDSN             = "slackqa.db"
	DefaultDBMaxOpenConns    = 1
	DefaultDBConnMaxLifetime = 5 * time.Minute

	DefaultSlackSearchChannel   = "sos_ts"
	DefaultSlackAnswerReaction  = "green_check_mark"
	DefaultSlackDoneReaction    = "done1"
	DefaultSlackHistoryPageSize = 500
	DefaultSlackSearchPageSize  = 100
	DefaultSlackMaxRetries      = 3

	DefaultKeywordsLexicon = "builtin"
	DefaultRelatedField    = "aux_keywords"

	DefaultGeminiModel      = "gemini-2.0-flash"
	DefaultGeminiTimeout    = 30 * time.Second
	DefaultGeminiMaxRetries = 2
	DefaultGeminiRetryDelay = 2 * time.Second

	DefaultImportWindowDays = 7
)

// Task names understood by the scheduler.
const (
	TaskWeeklyRefresh  = "weekly_refresh"
	TaskSQLMaintenance = "sql_maintenance"
)

// defaults is applied with viper.SetDefault. Every key is listed, including
// empty ones, so that environment variables can override it.
var defaults = map[string]any{
	"log.level": DefaultLogLevel,
	"log.json":  false,

	"http.addr":             DefaultHTTPAddr,
	"http.cors_origins":     []string{"*"},
	"http.read_timeout":     DefaultHTTPReadTimeout,
	"http.write_timeout":    DefaultHTTPWriteTimeout,
	"http.shutdown_timeout": DefaultHTTPShutdownTimeout,

	"database.driver":            DefaultDBDriver,
	"database.dsn":               DefaultDBDSN,
	"database.max_open_conns":    DefaultDBMaxOpenConns,
	"database.conn_max_lifetime": DefaultDBConnMaxLifetime,

	"slack.token":             "",
	"slack.search_token":      "",
	"slack.channel_id":        "",
	"slack.search_channel":    DefaultSlackSearchChannel,
	"slack.answer_reaction":   DefaultSlackAnswerReaction,
	"slack.done_reaction":     DefaultSlackDoneReaction,
	"slack.history_page_size": DefaultSlackHistoryPageSize,
	"slack.search_page_size":  DefaultSlackSearchPageSize,
	"slack.max_retries":       DefaultSlackMaxRetries,
	"slack.api_url":           "",

	"keywords.lexicon": DefaultKeywordsLexicon,
	"related.field":    DefaultRelatedField,

	"search.enabled": true,
	"search.path":    "",

	"scheduler.timezone": "Local",
	"scheduler.tasks": map[string]any{
		TaskWeeklyRefresh:  map[string]any{"enabled": true, "schedule": "0 0 2 * * 1"},
		TaskSQLMaintenance: map[string]any{"enabled": true, "schedule": "0 0 4 * * 0"},
	},

	"gemini.api_key":     "",
	"gemini.model":       DefaultGeminiModel,
	"gemini.timeout":     DefaultGeminiTimeout,
	"gemini.max_retries": DefaultGeminiMaxRetries,
	"gemini.retry_delay": DefaultGeminiRetryDelay,

	"telegram.token":   "",
	"telegram.chat_id": 0,

	"import.window_days": DefaultImportWindowDays,
}
