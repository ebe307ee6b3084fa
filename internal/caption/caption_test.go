package caption

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snapfeed/internal/apperror"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// scriptedGenerator answers per model and records the order it was asked in.
type scriptedGenerator struct {
	answers map[string]string
	fail    map[string]bool
	calls   []string
}

func (g *scriptedGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	g.calls = append(g.calls, model)
	if g.fail[model] {
		return "", errors.New("model overloaded")
	}
	return g.answers[model], nil
}

func TestGenerate_FirstModelWins(t *testing.T) {
	gen := &scriptedGenerator{answers: map[string]string{"gpt2": "  sunny vibes  "}}
	svc := NewService(gen, nil, 0, testLogger())

	got, err := svc.Generate(context.Background(), "beach day")
	require.NoError(t, err)
	assert.Equal(t, "sunny vibes", got)
	assert.Equal(t, []string{"gpt2"}, gen.calls)
}

func TestGenerate_FallsThroughModels(t *testing.T) {
	gen := &scriptedGenerator{
		fail:    map[string]bool{"gpt2": true},
		answers: map[string]string{"distilgpt2": "", "facebook/opt-125m": "golden hour"},
	}
	svc := NewService(gen, nil, 0, testLogger())

	got, err := svc.Generate(context.Background(), "sunset")
	require.NoError(t, err)
	assert.Equal(t, "golden hour", got)
	assert.Equal(t, DefaultModels, gen.calls)
}

func TestGenerate_AllFailUsesFallback(t *testing.T) {
	gen := &scriptedGenerator{fail: map[string]bool{"a": true, "b": true}}
	svc := NewService(gen, []string{"a", "b"}, 0, testLogger())

	got, err := svc.Generate(context.Background(), "my cat")
	require.NoError(t, err)
	assert.Equal(t, "✨ my cat", got)
}

func TestGenerate_Cached(t *testing.T) {
	gen := &scriptedGenerator{answers: map[string]string{"gpt2": "first answer"}}
	svc := NewService(gen, nil, time.Minute, testLogger())

	first, _ := svc.Generate(context.Background(), "coffee")
	gen.answers["gpt2"] = "second answer"
	second, _ := svc.Generate(context.Background(), "coffee")

	assert.Equal(t, first, second)
	assert.Len(t, gen.calls, 1, "second request should be served from cache")
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	svc := NewService(&scriptedGenerator{}, nil, 0, testLogger())

	_, err := svc.Generate(context.Background(), "   ")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestHuggingFace_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/distilgpt2", r.URL.Path)
		assert.Equal(t, "Bearer hf-key", r.Header.Get("Authorization"))

		var body hfRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body.Inputs, "a rainy walk")
		assert.False(t, body.Parameters.ReturnFullText)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"generated_text":" Puddles and poetry. "}]`))
	}))
	defer srv.Close()

	hf := NewHuggingFace("hf-key", srv.URL)
	got, err := hf.Generate(context.Background(), "distilgpt2", "a rainy walk")
	require.NoError(t, err)
	assert.Equal(t, "Puddles and poetry.", got)
}

func TestHuggingFace_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHuggingFace("hf-key", srv.URL).Generate(context.Background(), "gpt2", "x")
	assert.Error(t, err)

	_, err = NewHuggingFace("", srv.URL).Generate(context.Background(), "gpt2", "x")
	assert.Error(t, err)
}
