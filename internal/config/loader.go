package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/edgard/slackqa/internal/errs"
)

// EnvPrefix prefixes every environment variable, e.g. SLACKQA_SLACK_TOKEN.
const EnvPrefix = "SLACKQA"

// Load reads configuration in this order of precedence:
//  1. SLACKQA_* environment variables
//  2. the config file (path, or config.yaml in the working directory)
//  3. defaults
//
// A missing config.yaml is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errs.NewConfigError("failed to read config file", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.NewConfigError("failed to parse config", err)
	}

	if cfg.Slack.SearchToken == "" {
		cfg.Slack.SearchToken = cfg.Slack.Token
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and the rules that span sections.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errs.NewConfigError("invalid configuration", err)
	}
	if c.Keywords.Lexicon == "gemini" && c.Gemini.APIKey == "" {
		return errs.NewConfigError("gemini.api_key is required when keywords.lexicon is gemini", nil)
	}
	for name := range c.Scheduler.Tasks {
		if name != TaskWeeklyRefresh && name != TaskSQLMaintenance {
			return errs.NewConfigError(fmt.Sprintf("unknown scheduler task %q", name), nil)
		}
	}
	return nil
}
