package llm

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveThinkTags(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "plain", expected: "plain"},
		{input: "<think>\nlong\nreasoning\n</think>\n\nAnswer.", expected: "Answer."},
		{input: "<think>a</think>x<think>b</think>y", expected: "xy"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, RemoveThinkTags(tt.input))
	}
}

func TestChatMessages(t *testing.T) {
	msgs := chatMessages([]string{"question", "answer", "follow up"})

	require.Len(t, msgs, 3)
	assert.Equal(t, goopenai.ChatMessageRoleUser, msgs[0].Role)
	assert.Equal(t, goopenai.ChatMessageRoleAssistant, msgs[1].Role)
	assert.Equal(t, goopenai.ChatMessageRoleUser, msgs[2].Role)
	assert.Equal(t, "follow up", msgs[2].Content)
}

func TestOpenAICompat_Chat(t *testing.T) {
	var received goopenai.ChatCompletionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(goopenai.ChatCompletionResponse{
			ID:     "chatcmpl-1",
			Object: "chat.completion",
			Model:  received.Model,
			Choices: []goopenai.ChatCompletionChoice{
				{
					Index: 0,
					Message: goopenai.ChatCompletionMessage{
						Role:    goopenai.ChatMessageRoleAssistant,
						Content: "<think>checking</think>The fox jumps.",
					},
					FinishReason: goopenai.FinishReasonStop,
				},
			},
		})
	}))
	defer server.Close()

	temperature := float32(0.2)
	maxTokens := 64
	chat := NewOpenAICompat(server.URL+"/", "secret", "local-model", Parameters{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}, slog.New(slog.DiscardHandler))

	answer, err := chat.Chat(t.Context(), []string{"What does the fox do?"})
	require.NoError(t, err)

	assert.Equal(t, "The fox jumps.", answer)
	assert.Equal(t, "local-model", received.Model)
	assert.InDelta(t, 0.2, received.Temperature, 0.0001)
	assert.Equal(t, 64, received.MaxCompletionTokens)
	require.Len(t, received.Messages, 1)
	assert.Equal(t, "What does the fox do?", received.Messages[0].Content)
}

func TestOpenAICompat_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	chat := NewOpenAICompat(server.URL, "", "model", Parameters{}, slog.New(slog.DiscardHandler))

	_, err := chat.Chat(t.Context(), []string{"hi"})
	assert.Error(t, err)
}

func TestAnthropic_Chat(t *testing.T) {
	var received anthropicChatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "The fox "},
				{"type": "tool_use"},
				{"type": "text", "text": "jumps."}
			],
			"stop_reason": "end_turn"
		}`))
	}))
	defer server.Close()

	topK := 5
	chat := NewAnthropic(server.URL, "secret", "claude-model", 256, Parameters{TopK: &topK}, nil)

	answer, err := chat.Chat(t.Context(), []string{"question", "draft", "refine it"})
	require.NoError(t, err)

	assert.Equal(t, "The fox jumps.", answer)
	assert.Equal(t, 256, received.MaxTokens)
	require.NotNil(t, received.TopK)
	assert.Equal(t, 5, *received.TopK)
	require.Len(t, received.Messages, 3)
	assert.Equal(t, "assistant", received.Messages[1].Role)
	assert.Equal(t, "refine it", received.Messages[2].Content[0].Text)
}

func TestAnthropic_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "Empty content", status: http.StatusOK, body: `{"content": []}`, wantErr: ErrEmptyResponse},
		{name: "Rate limited", status: http.StatusTooManyRequests, body: `{"type":"error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewAnthropic(server.URL, "", "model", 16, Parameters{}, nil).Chat(t.Context(), []string{"hi"})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestOpenRouter_Chat(t *testing.T) {
	var received openRouterChatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "go-docsum", r.Header.Get("X-Title"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"<think>x</think>The fox."}}]}`))
	}))
	defer server.Close()

	seed := 7
	chat := NewOpenRouter(server.URL+"/", "secret", "vendor/model", Parameters{Seed: &seed}, nil)

	answer, err := chat.Chat(t.Context(), []string{"What does the fox do?"})
	require.NoError(t, err)

	assert.Equal(t, "The fox.", answer)
	assert.Equal(t, "vendor/model", received.Model)
	require.NotNil(t, received.Seed)
	assert.Equal(t, 7, *received.Seed)
}

func TestOpenRouter_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":{"code":502,"message":"upstream unavailable"}}`))
	}))
	defer server.Close()

	_, err := NewOpenRouter(server.URL, "", "model", Parameters{}, nil).Chat(t.Context(), []string{"hi"})
	assert.ErrorContains(t, err, "upstream unavailable")
}

func TestNewOllama_InvalidHost(t *testing.T) {
	_, err := NewOllama("not a url", "model", Parameters{}, nil)
	assert.Error(t, err)

	_, err = NewOllama("http://localhost:11434", "model", Parameters{}, nil)
	assert.NoError(t, err)
}

func TestConstructors_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		responses := NewOpenAIResponses("key", "model", Parameters{}, nil)
		_, err := responses.Chat(t.Context(), nil)
		assert.Error(t, err)
	})
	assert.NotPanics(t, func() { _ = NewOpenAI("key", "model", Parameters{}, nil) })
	assert.NotPanics(t, func() { _ = NewOpenAICompat("http://localhost:8000/v1", "", "model", Parameters{}, nil) })
	assert.NotPanics(t, func() { _ = NewAnthropic("", "key", "model", 16, Parameters{}, nil) })
	assert.NotPanics(t, func() { _ = NewOpenRouter("", "key", "model", Parameters{}, nil) })
}
