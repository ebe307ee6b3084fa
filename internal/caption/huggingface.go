package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the Hugging Face inference endpoint; the model name is
// appended as a path segment.
const DefaultBaseURL = "https://api-inference.huggingface.co/models"

// HuggingFace calls the Hugging Face text-generation inference API.
type HuggingFace struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewHuggingFace returns a generator using apiKey. An empty baseURL means
// DefaultBaseURL.
func NewHuggingFace(apiKey, baseURL string) *HuggingFace {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HuggingFace{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

var _ Generator = (*HuggingFace)(nil)

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxLength      int     `json:"max_length"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

// Generate asks model for a caption about prompt.
func (h *HuggingFace) Generate(ctx context.Context, model, prompt string) (string, error) {
	if h.apiKey == "" {
		return "", errors.New("caption: missing Hugging Face API key")
	}

	buf, err := json.Marshal(hfRequest{
		Inputs: "Create a creative Instagram caption about: " + prompt,
		Parameters: hfParameters{
			MaxLength:   100,
			Temperature: 0.7,
		},
	})
	if err != nil {
		return "", fmt.Errorf("caption: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/"+model, bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("caption: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("caption: calling %s: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("caption: %s returned %s", model, resp.Status)
	}

	var out []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("caption: decoding %s response: %w", model, err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("caption: %s returned no generations", model)
	}

	return strings.TrimSpace(out[0].GeneratedText), nil
}
