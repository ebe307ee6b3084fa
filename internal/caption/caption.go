// Package caption suggests captions for new posts.
//
// A prompt is sent to a list of small text-generation models in order; the
// first non-empty answer wins. If every model fails the caption falls back to
// the prompt itself with a sparkle, so the feature never blocks posting.
// Answers are cached per prompt for a while, since users tend to ask for the
// same idea again.
package caption

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sakif/snapfeed/internal/apperror"
)

// DefaultModels are tried in this order.
var DefaultModels = []string{"gpt2", "distilgpt2", "facebook/opt-125m"}

const (
	DefaultCacheTTL  = 30 * time.Minute
	defaultCacheSize = 1024
	fallbackPrefix   = "✨ "
)

// Generator produces a caption with one named model.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Service picks a caption, using the cache and the model fallback chain.
type Service struct {
	gen    Generator
	models []string
	cache  *expirable.LRU[string, string]
	logger *slog.Logger
}

// NewService builds a Service. A nil models list means DefaultModels and a
// zero ttl means DefaultCacheTTL.
func NewService(gen Generator, models []string, ttl time.Duration, logger *slog.Logger) *Service {
	if len(models) == 0 {
		models = DefaultModels
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		gen:    gen,
		models: models,
		cache:  expirable.NewLRU[string, string](defaultCacheSize, nil, ttl),
		logger: logger,
	}
}

// Generate returns a caption for prompt. It only fails for an empty prompt.
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", apperror.ValidationFailed("prompt", "please provide a prompt for the caption")
	}

	if cached, ok := s.cache.Get(prompt); ok {
		return cached, nil
	}

	caption := ""
	for _, model := range s.models {
		if ctx.Err() != nil {
			break
		}
		out, err := s.gen.Generate(ctx, model, prompt)
		if err != nil {
			s.logger.Warn("caption model failed",
				slog.String("model", model),
				slog.String("error", err.Error()),
			)
			continue
		}
		if out = strings.TrimSpace(out); out != "" {
			caption = out
			break
		}
	}

	if caption == "" {
		caption = fallbackPrefix + prompt
	}

	s.cache.Add(prompt, caption)
	return caption, nil
}
