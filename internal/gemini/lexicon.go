// Package gemini implements a keyword Lexicon backed by Google's Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/slackqa/internal/config"
)

const sensesInstruction = `You are a thesaurus. For the term below, list its distinct senses as used in
software engineering and IT support conversations. Each sense is a list of
lemma names in lowercase, joining multi-word lemmas with underscores, and
includes the term itself when it applies. Return at most 4 senses with at
most 6 lemmas each. Return an empty list when the term has no meaning.

Term: %s`

var sensesSchema = &genai.Schema{
	Type:        genai.TypeArray,
	Description: "Senses of the term; each sense is a list of synonymous lemma names.",
	Items: &genai.Schema{
		Type:  genai.TypeArray,
		Items: &genai.Schema{Type: genai.TypeString},
	},
}

// generator is the subset of *genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Lexicon asks Gemini for the senses of a term. Answers are cached for the
// life of the Lexicon. Failures are logged and reported as "no senses".
type Lexicon struct {
	models     generator
	model      string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	log        *slog.Logger

	mu    sync.Mutex
	cache map[string][][]string
}

// NewLexicon creates a Gemini client and returns a Lexicon using it.
func NewLexicon(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (*Lexicon, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	l := newLexicon(gi.Models, cfg, log)
	l.log.Info("Gemini lexicon initialized", "model", cfg.Model)
	return l, nil
}

func newLexicon(models generator, cfg config.GeminiConfig, log *slog.Logger) *Lexicon {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultGeminiTimeout
	}
	return &Lexicon{
		models:     models,
		model:      cfg.Model,
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		log:        log.With("component", "gemini_lexicon"),
		cache:      make(map[string][][]string),
	}
}

// Senses implements keywords.Lexicon.
func (l *Lexicon) Senses(term string) [][]string {
	key := strings.ToLower(strings.TrimSpace(term))
	if key == "" {
		return nil
	}

	l.mu.Lock()
	cached, ok := l.cache[key]
	l.mu.Unlock()
	if ok {
		return cached
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	senses, err := l.lookup(ctx, key)
	if err != nil {
		l.log.WarnContext(ctx, "Gemini sense lookup failed, using no synonyms", "term", key, "error", err)
		return nil
	}

	l.mu.Lock()
	l.cache[key] = senses
	l.mu.Unlock()
	return senses
}

func (l *Lexicon) lookup(ctx context.Context, term string) ([][]string, error) {
	contents := []*genai.Content{genai.NewContentFromText(fmt.Sprintf(sensesInstruction, term), genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   sensesSchema,
	}

	resp, err := l.generateContentWithRetries(ctx, contents, cfg)
	if err != nil {
		return nil, err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		return nil, fmt.Errorf("request blocked: %v", resp.PromptFeedback.BlockReason)
	}
	text := resp.Text()
	if text == "" {
		return nil, errors.New("empty response")
	}

	var raw [][]string
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("invalid senses JSON received: %w", err)
	}

	senses := make([][]string, 0, len(raw))
	for _, sense := range raw {
		var lemmas []string
		for _, lemma := range sense {
			lemma = strings.ToLower(strings.Join(strings.Fields(lemma), "_"))
			if lemma != "" {
				lemmas = append(lemmas, lemma)
			}
		}
		if len(lemmas) > 0 {
			senses = append(senses, lemmas)
		}
	}
	return senses, nil
}

func (l *Lexicon) generateContentWithRetries(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	for i := 0; ; i++ {
		resp, err := l.models.GenerateContent(ctx, l.model, contents, cfg)
		if err == nil {
			return resp, nil
		}

		code, ok := apiErrorCode(err)
		if !ok || (code != 500 && code != 503) {
			return nil, fmt.Errorf("gemini API call failed: %w", err)
		}
		if i >= l.maxRetries {
			return nil, fmt.Errorf("gemini API call failed after %d retries (APIError code %d): %w", l.maxRetries, code, err)
		}

		l.log.InfoContext(ctx, "Retrying Gemini API call", "attempt", i+1, "delay", l.retryDelay, "code", code)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
}

// apiErrorCode extracts the HTTP code from a genai.APIError in either its
// value or pointer form.
func apiErrorCode(err error) (int, bool) {
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, true
	}
	var val genai.APIError
	if errors.As(err, &val) {
		return val.Code, true
	}
	return 0, false
}
