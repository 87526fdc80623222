package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	baseMaxOutputTokens  int64 = 512
	limitMaxOutputTokens int64 = 4096
)

// OpenAIResponses provides an implementation of the docsum LLM interface on top of the OpenAI
// Responses API. Replies cut short by the output token limit are retried with a doubled limit.
type OpenAIResponses struct {
	model  string
	params Parameters

	client openai.Client
	logger *slog.Logger
}

// NewOpenAIResponses creates a new OpenAIResponses instance.
func NewOpenAIResponses(apiKey, model string, params Parameters, logger *slog.Logger) OpenAIResponses {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return OpenAIResponses{
		model:  model,
		params: params,
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		logger: logger.With(slog.String("module", "openai-responses")),
	}
}

// Chat sends the conversation to the Responses API. Earlier turns are sent as a transcript and the
// last message as the input.
func (o OpenAIResponses) Chat(ctx context.Context, messages []string) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages to send")
	}

	input := messages[len(messages)-1]
	if len(messages) > 1 {
		var transcript strings.Builder
		for i, msg := range messages[:len(messages)-1] {
			role := "User"
			if i%2 == 1 {
				role = "Assistant"
			}
			fmt.Fprintf(&transcript, "%s: %s\n\n", role, msg)
		}
		transcript.WriteString("User: ")
		transcript.WriteString(input)
		input = transcript.String()
	}

	maxOutputTokens := baseMaxOutputTokens
	if o.params.MaxTokens != nil {
		maxOutputTokens = int64(*o.params.MaxTokens)
	}

	for {
		params := responses.ResponseNewParams{
			Model:           openai.ChatModel(o.model),
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(input),
			},
		}
		if o.params.Temperature != nil {
			params.Temperature = openai.Float(float64(*o.params.Temperature))
		}
		if o.params.TopP != nil {
			params.TopP = openai.Float(float64(*o.params.TopP))
		}

		resp, err := o.client.Responses.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("error sending request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				o.logger.Debug("Retrying incomplete response", "maxOutputTokens", maxOutputTokens)
				continue
			}
			return "", fmt.Errorf("response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason, maxOutputTokens)
		}

		text := strings.TrimSpace(resp.OutputText())
		if text == "" {
			return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
		}
		return text, nil
	}
}
