package llm

import (
	"context"
	"regexp"
	"strings"

	"github.com/philippgille/chromem-go"
)

var thinkTags = regexp.MustCompile(`(?s)<think>.*?</think>`)

// RemoveThinkTags removes <think> tags and everything in between them from a string.
func RemoveThinkTags(input string) string {
	return strings.TrimSpace(thinkTags.ReplaceAllString(input, ""))
}

// EmbeddingFunc matches docsum.EmbeddingFunc.
type EmbeddingFunc = func(ctx context.Context, text string) ([]float32, error)

// NewOpenAIEmbedding returns an EmbeddingFunc calling the OpenAI embeddings API with the given
// model, for example "text-embedding-3-small".
func NewOpenAIEmbedding(apiKey, model string) EmbeddingFunc {
	return chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI(model))
}

// NewOllamaEmbedding returns an EmbeddingFunc calling the embeddings endpoint of an Ollama server.
// An empty host uses the default local Ollama address.
func NewOllamaEmbedding(host, model string) EmbeddingFunc {
	baseURL := ""
	if host != "" {
		baseURL = strings.TrimSuffix(host, "/") + "/api"
	}
	return chromem.NewEmbeddingFuncOllama(model, baseURL)
}
