package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Anthropic talks to the Anthropic Messages API. It implements the docsum LLM interface and
// joins the text blocks of each reply.
type Anthropic struct {
	model     string
	maxTokens int
	params    Parameters

	api    jsonClient
	logger *slog.Logger
}

type anthropicMessage struct {
	Role    string                    `json:"role"`
	Content []anthropicMessageContent `json:"content"`
}

type anthropicMessageContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicChatRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`

	StopSequences []string `json:"stop_sequences,omitempty"`
	Temperature   *float32 `json:"temperature,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	TopP          *float32 `json:"top_p,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicMessageContent `json:"content"`
	StopReason string                    `json:"stop_reason"`
}

const (
	anthropicAPIEndpoint = "https://api.anthropic.com/v1"
	anthropicAPIVersion  = "2023-06-01"
)

// ErrEmptyResponse is returned when a provider replies without any text.
var ErrEmptyResponse = errors.New("empty response content")

// NewAnthropic creates an Anthropic client. An empty baseURL uses the public API endpoint.
// maxTokens is required by the Messages API and bounds every reply.
func NewAnthropic(baseURL, apiKey, model string, maxTokens int, params Parameters, logger *slog.Logger) Anthropic {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("module", "anthropic"))

	return Anthropic{
		model:     model,
		maxTokens: maxTokens,
		params:    params,
		api: newJSONClient(baseURL, anthropicAPIEndpoint, map[string]string{
			"x-api-key":         apiKey,
			"anthropic-version": anthropicAPIVersion,
		}, logger),
		logger: logger,
	}
}

// Chat sends the conversation to the Messages API.
func (a Anthropic) Chat(ctx context.Context, messages []string) (string, error) {
	msgs := make([]anthropicMessage, len(messages))
	for i, msg := range messages {
		msgs[i] = anthropicMessage{
			Role:    alternateRoles(i),
			Content: []anthropicMessageContent{{Type: "text", Text: msg}},
		}
	}

	req := anthropicChatRequest{
		Model:     a.model,
		Messages:  msgs,
		MaxTokens: a.maxTokens,

		StopSequences: a.params.Stop,
		Temperature:   a.params.Temperature,
		TopK:          a.params.TopK,
		TopP:          a.params.TopP,
	}

	var res anthropicResponse
	if err := a.api.post(ctx, "/messages", req, &res); err != nil {
		return "", err
	}

	if res.StopReason == "max_tokens" {
		a.logger.Warn("Reply truncated at max tokens", slog.Int("maxTokens", a.maxTokens))
	}

	var text strings.Builder
	for _, content := range res.Content {
		if content.Type == "text" {
			text.WriteString(content.Text)
		}
	}
	if text.Len() == 0 {
		return "", ErrEmptyResponse
	}

	return RemoveThinkTags(text.String()), nil
}
