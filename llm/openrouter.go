package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// OpenRouter implements the docsum LLM interface for models routed through OpenRouter. Every
// field of Parameters is forwarded, since OpenRouter accepts the full sampling set.
type OpenRouter struct {
	model  string
	params Parameters

	api jsonClient
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
}

type openRouterChatRequest struct {
	Model    string              `json:"model"`
	Messages []openRouterMessage `json:"messages"`

	Temperature       *float32       `json:"temperature,omitempty"`
	TopP              *float32       `json:"top_p,omitempty"`
	TopK              *int           `json:"top_k,omitempty"`
	FrequencyPenalty  *float32       `json:"frequency_penalty,omitempty"`
	PresencePenalty   *float32       `json:"presence_penalty,omitempty"`
	RepetitionPenalty *float32       `json:"repetition_penalty,omitempty"`
	MinP              *float32       `json:"min_p,omitempty"`
	TopA              *float32       `json:"top_a,omitempty"`
	Seed              *int           `json:"seed,omitempty"`
	MaxTokens         *int           `json:"max_tokens,omitempty"`
	LogitBias         map[string]int `json:"logit_bias,omitempty"`
	Logprobs          *bool          `json:"logprobs,omitempty"`
	TopLogprobs       *int           `json:"top_logprobs,omitempty"`
	Stop              []string       `json:"stop,omitempty"`
	IncludeReasoning  *bool          `json:"include_reasoning,omitempty"`
}

type openRouterResponse struct {
	Choices []struct {
		Message openRouterMessage `json:"message"`
	} `json:"choices"`
	// Error is set when an upstream provider failed after OpenRouter accepted the request.
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

const openRouterAPIEndpoint = "https://openrouter.ai/api/v1"

// NewOpenRouter creates an OpenRouter client. An empty baseURL uses the public endpoint.
func NewOpenRouter(baseURL, apiKey, model string, params Parameters, logger *slog.Logger) OpenRouter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return OpenRouter{
		model:  model,
		params: params,
		api: newJSONClient(baseURL, openRouterAPIEndpoint, map[string]string{
			"Authorization": "Bearer " + apiKey,
			"HTTP-Referer":  "https://github.com/MegaGrindStone/go-docsum/",
			"X-Title":       "go-docsum",
		}, logger.With(slog.String("module", "openrouter"))),
	}
}

// Chat sends the conversation to the OpenRouter chat completions endpoint.
func (o OpenRouter) Chat(ctx context.Context, messages []string) (string, error) {
	msgs := make([]openRouterMessage, len(messages))
	for i, msg := range messages {
		msgs[i] = openRouterMessage{Role: alternateRoles(i), Content: msg}
	}

	req := openRouterChatRequest{
		Model:    o.model,
		Messages: msgs,

		Temperature:       o.params.Temperature,
		TopP:              o.params.TopP,
		TopK:              o.params.TopK,
		FrequencyPenalty:  o.params.FrequencyPenalty,
		PresencePenalty:   o.params.PresencePenalty,
		RepetitionPenalty: o.params.RepetitionPenalty,
		MinP:              o.params.MinP,
		TopA:              o.params.TopA,
		Seed:              o.params.Seed,
		MaxTokens:         o.params.MaxTokens,
		LogitBias:         o.params.LogitBias,
		Logprobs:          o.params.Logprobs,
		TopLogprobs:       o.params.TopLogprobs,
		Stop:              o.params.Stop,
		IncludeReasoning:  o.params.IncludeReasoning,
	}

	var res openRouterResponse
	if err := o.api.post(ctx, "/chat/completions", req, &res); err != nil {
		return "", err
	}

	if res.Error != nil {
		return "", fmt.Errorf("provider error %d: %s", res.Error.Code, res.Error.Message)
	}
	if len(res.Choices) == 0 {
		return "", errors.New("no choices found")
	}

	content := RemoveThinkTags(res.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}

	return content, nil
}
