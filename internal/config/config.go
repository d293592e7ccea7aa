// Package config loads the slackqa configuration from config.yaml, SLACKQA_*
// environment variables and built-in defaults.
package config

import "time"

// Config is the complete application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Slack     SlackConfig     `mapstructure:"slack"`
	Keywords  KeywordsConfig  `mapstructure:"keywords"`
	Related   RelatedConfig   `mapstructure:"related"`
	Search    SearchConfig    `mapstructure:"search"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Import    ImportConfig    `mapstructure:"import"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	CORSOrigins     []string      `mapstructure:"cors_origins"     validate:"min=1,dive,required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"min=1s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"            validate:"required,oneof=sqlite postgres"`
	DSN             string        `mapstructure:"dsn"               validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"min=0"`
}

// SlackConfig describes the workspace questions are imported from.
// SearchToken must be a user token; it falls back to Token when empty.
type SlackConfig struct {
	Token           string `mapstructure:"token"             validate:"required"`
	SearchToken     string `mapstructure:"search_token"`
	ChannelID       string `mapstructure:"channel_id"        validate:"required"`
	SearchChannel   string `mapstructure:"search_channel"    validate:"required"`
	AnswerReaction  string `mapstructure:"answer_reaction"   validate:"required"`
	DoneReaction    string `mapstructure:"done_reaction"     validate:"required"`
	HistoryPageSize int    `mapstructure:"history_page_size" validate:"min=1,max=1000"`
	SearchPageSize  int    `mapstructure:"search_page_size"  validate:"min=1,max=100"`
	MaxRetries      int    `mapstructure:"max_retries"       validate:"min=0,max=10"`
	APIURL          string `mapstructure:"api_url"           validate:"omitempty,url"`
}

type KeywordsConfig struct {
	Lexicon string `mapstructure:"lexicon" validate:"required,oneof=builtin gemini none"`
}

type RelatedConfig struct {
	Field string `mapstructure:"field" validate:"required,oneof=aux_keywords keywords"`
}

// SearchConfig controls the full-text index. An empty Path keeps the index
// in memory.
type SearchConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type SchedulerConfig struct {
	Timezone string                `mapstructure:"timezone"`
	Tasks    map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

type GeminiConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"       validate:"required"`
	Timeout    time.Duration `mapstructure:"timeout"     validate:"min=1s,max=5m"`
	MaxRetries int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelay time.Duration `mapstructure:"retry_delay" validate:"min=0"`
}

// TelegramConfig enables job summaries in a Telegram chat when Token is set.
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id" validate:"required_with=Token"`
}

type ImportConfig struct {
	WindowDays int `mapstructure:"window_days" validate:"min=1,max=365"`
}
