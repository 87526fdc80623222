package llm

import (
	"log/slog"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAICompat implements the docsum LLM interface for servers exposing an OpenAI-compatible chat
// completion API, such as vLLM, llama.cpp or LM Studio.
type OpenAICompat struct {
	OpenAI

	BaseURL string
}

// NewOpenAICompat creates a client for the server at host, for example "http://localhost:8000/v1".
func NewOpenAICompat(host, apiKey, model string, params Parameters, logger *slog.Logger) OpenAICompat {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	baseURL := strings.TrimSuffix(host, "/")

	config := goopenai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return OpenAICompat{
		OpenAI: OpenAI{
			model:  model,
			params: params,
			client: goopenai.NewClientWithConfig(config),
			logger: logger.With(slog.String("module", "openaicompat"), slog.String("baseURL", baseURL)),
		},
		BaseURL: baseURL,
	}
}
