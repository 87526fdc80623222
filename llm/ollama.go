package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// Ollama provides an implementation of the docsum LLM interface for models served by Ollama.
// Streamed response parts are concatenated into one answer.
type Ollama struct {
	host  string
	model string

	params Parameters

	client *api.Client

	logger *slog.Logger
}

// NewOllama creates an Ollama client for model. host is the server URL; an empty host falls back
// to OLLAMA_HOST and then to the local default.
func NewOllama(host, model string, params Parameters, logger *slog.Logger) (Ollama, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var client *api.Client
	if host == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return Ollama{}, fmt.Errorf("failed to create ollama client: %w", err)
		}
		client = c
	} else {
		u, err := url.Parse(host)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return Ollama{}, fmt.Errorf("invalid ollama host %q", host)
		}
		client = api.NewClient(u, &http.Client{})
	}

	return Ollama{
		host:   host,
		model:  model,
		params: params,
		client: client,
		logger: logger.With(slog.String("module", "ollama")),
	}, nil
}

// Chat sends a chat message to the Ollama API.
func (o Ollama) Chat(ctx context.Context, messages []string) (string, error) {
	msgs := make([]api.Message, len(messages))
	for i, msg := range messages {
		msgs[i] = api.Message{Role: alternateRoles(i), Content: msg}
	}

	req := o.chatRequest(msgs)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	o.logger.Debug("Sending chat", "host", o.host, "model", o.model, "messages", len(msgs))

	var result strings.Builder

	if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
		result.WriteString(res.Message.Content)
		return nil
	}); err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	answer := RemoveThinkTags(result.String())
	if answer == "" {
		return "", ErrEmptyResponse
	}
	return answer, nil
}

func (o Ollama) chatRequest(messages []api.Message) api.ChatRequest {
	req := api.ChatRequest{
		Model:    o.model,
		Messages: messages,
	}

	opts := make(map[string]any)

	if o.params.Temperature != nil {
		opts["temperature"] = *o.params.Temperature
	}
	if o.params.Seed != nil {
		opts["seed"] = *o.params.Seed
	}
	if o.params.Stop != nil {
		opts["stop"] = o.params.Stop
	}
	if o.params.TopK != nil {
		opts["top_k"] = *o.params.TopK
	}
	if o.params.TopP != nil {
		opts["top_p"] = *o.params.TopP
	}
	if o.params.MinP != nil {
		opts["min_p"] = *o.params.MinP
	}
	if o.params.MaxTokens != nil {
		opts["num_predict"] = *o.params.MaxTokens
	}
	if o.params.IncludeReasoning != nil {
		req.Think = o.params.IncludeReasoning
	}

	req.Options = opts

	return req
}
