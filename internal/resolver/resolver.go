// Package resolver suggests a canonical destination title for tracks the
// matcher could not resolve. Suggestions come from a local Ollama model.
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// NoResult is returned when no usable suggestion was produced.
const NoResult = "No result found"

const defaultBaseURL = "http://localhost:11434"

const systemPrompt = "You map tracks from one streaming catalog to their title on YouTube Music.\n\n" +
	"Rules:\n" +
	"Answer with the official song title only, without the artist name.\n" +
	"Prefer the original studio recording over slowed, reverb, lyric video, or playlist uploads.\n" +
	"Output: Return ONLY a JSON object of the form {\"title\": \"...\"}. Use an empty title when unsure."

// rejected title fragments, matching uploads that are never the canonical recording
var rejected = []string{"slowed", "reverb", "playlist", "lyrics"}

// Resolver proposes a canonical title for a source track.
type Resolver interface {
	SuggestCanonicalTitle(ctx context.Context, title, artist string) (string, error)
}

// Disabled never suggests anything.
type Disabled struct{}

// SuggestCanonicalTitle always returns [NoResult].
func (Disabled) SuggestCanonicalTitle(context.Context, string, string) (string, error) {
	return NoResult, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

type suggestion struct {
	Title string `json:"title"`
}

// OllamaResolver asks an Ollama chat model for the title.
type OllamaResolver struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaResolver creates a resolver; timeout bounds each request (default 60s).
func NewOllamaResolver(baseURL, model string, timeout time.Duration) *OllamaResolver {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaResolver{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Prompt renders the user message for a track.
func Prompt(title, artist string) string {
	return fmt.Sprintf("Given this Spotify track: %q find the YouTube Music alternative and reply with its title.", artist+" - "+title)
}

// SuggestCanonicalTitle returns the suggested title or [NoResult].
// Transport and decoding problems are returned as errors.
func (c *OllamaResolver) SuggestCanonicalTitle(ctx context.Context, title, artist string) (string, error) {
	payload := chatRequest{
		Model:  c.model,
		Stream: false,
		Format: "json",
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: Prompt(title, artist)},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama: unexpected status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama: %s", parsed.Error)
	}

	return clean(parsed.Message.Content), nil
}

// clean extracts the title from the model output and applies the rejection filter.
func clean(content string) string {
	content = strings.TrimSpace(content)

	var s suggestion
	if err := json.Unmarshal([]byte(content), &s); err == nil {
		content = s.Title
	}
	content = strings.Trim(strings.TrimSpace(content), `"'`)

	if content == "" || strings.EqualFold(content, NoResult) {
		return NoResult
	}
	lower := strings.ToLower(content)
	for _, r := range rejected {
		if strings.Contains(lower, r) {
			return NoResult
		}
	}
	return content
}
