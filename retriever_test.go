package docsum_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	docsum "github.com/MegaGrindStone/go-docsum"
	"github.com/MegaGrindStone/go-docsum/handler"
)

// buildTestIndex indexes one chunk per part.
func buildTestIndex(t *testing.T, parts ...string) *docsum.SummaryIndex {
	t.Helper()

	chunks := make([]docsum.Chunk, len(parts))
	offset := 0
	for i, part := range parts {
		chunks[i] = docsum.Chunk{Content: part, Start: offset, End: offset + len(part)}
		offset += len(part)
	}

	index, err := docsum.BuildIndex(context.Background(), docsum.Document{ID: "doc", Content: strings.Join(parts, "")},
		docsum.ChunkingPolicy{}, stubHandler{chunks: chunks}, nil)
	if err != nil {
		t.Fatalf("Failed to build index: %v", err)
	}
	return index
}

func TestParseRetrievalStrategy(t *testing.T) {
	tests := []struct {
		input       string
		expected    docsum.RetrievalStrategy
		expectError bool
	}{
		{input: "", expected: docsum.StrategyLLM},
		{input: "llm", expected: docsum.StrategyLLM},
		{input: " LLM ", expected: docsum.StrategyLLM},
		{input: "all", expected: docsum.StrategyAll},
		{input: "default", expected: docsum.StrategyAll},
		{input: "embedding", expected: docsum.StrategyEmbedding},
		{input: "keyword", expectError: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			strategy, err := docsum.ParseRetrievalStrategy(tt.input)
			if tt.expectError {
				if !errors.Is(err, docsum.ErrUnknownStrategy) {
					t.Errorf("Expected ErrUnknownStrategy, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if strategy != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, strategy)
			}
		})
	}
}

func TestAsRetriever_Errors(t *testing.T) {
	index := buildTestIndex(t, "a", "b")

	tests := []struct {
		name        string
		strategy    docsum.RetrievalStrategy
		cfg         docsum.RetrieverConfig
		expectedErr error
	}{
		{name: "LLM strategy without LLM", strategy: docsum.StrategyLLM, expectedErr: docsum.ErrLLMRequired},
		{name: "Empty strategy without LLM", strategy: "", expectedErr: docsum.ErrLLMRequired},
		{
			name:        "Embedding strategy without embedder",
			strategy:    docsum.StrategyEmbedding,
			expectedErr: docsum.ErrEmbeddingRequired,
		},
		{name: "Unknown strategy", strategy: "bm25", expectedErr: docsum.ErrUnknownStrategy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := index.AsRetriever(tt.strategy, tt.cfg)
			if !errors.Is(err, tt.expectedErr) {
				t.Errorf("Expected error %v, got %v", tt.expectedErr, err)
			}
		})
	}
}

func TestAllRetriever(t *testing.T) {
	index := buildTestIndex(t, "one ", "two ", "three")

	retriever, err := index.AsRetriever(docsum.StrategyAll, docsum.RetrieverConfig{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	chunks, err := retriever.Retrieve(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.OrderIndex != i {
			t.Errorf("Expected chunk %d in document order, got OrderIndex %d", i, chunk.OrderIndex)
		}
		if chunk.Score != 1 {
			t.Errorf("Expected score 1, got %v", chunk.Score)
		}
	}
}

func TestLLMRetriever(t *testing.T) {
	t.Run("Selected chunks are returned in document order", func(t *testing.T) {
		index := buildTestIndex(t, "cats ", "foxes ", "dogs ", "fox dens")
		mockLLM := &MockLLM{
			chatResponse: "```json\n" + `{"documents": [{"doc": 4, "relevance": 9}, {"doc": 2, "relevance": 6}]}` + "\n```",
		}

		retriever, err := index.AsRetriever(docsum.StrategyLLM, docsum.RetrieverConfig{LLM: mockLLM})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		chunks, err := retriever.Retrieve(context.Background(), "Where do foxes live?")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(chunks) != 2 {
			t.Fatalf("Expected 2 chunks, got %d", len(chunks))
		}
		if chunks[0].Content != "foxes " || chunks[1].Content != "fox dens" {
			t.Errorf("Unexpected chunks: %q, %q", chunks[0].Content, chunks[1].Content)
		}
		if chunks[0].Score != 6 || chunks[1].Score != 9 {
			t.Errorf("Unexpected scores: %v, %v", chunks[0].Score, chunks[1].Score)
		}

		calls := mockLLM.calls()
		if len(calls) != 1 {
			t.Fatalf("Expected 1 LLM call, got %d", len(calls))
		}
		prompt := calls[0][0]
		for _, expected := range []string{"Document 1:\ncats ", "Document 4:\nfox dens", "Where do foxes live?"} {
			if !strings.Contains(prompt, expected) {
				t.Errorf("Expected prompt to contain %q", expected)
			}
		}
	})

	t.Run("Chunks are shown in batches", func(t *testing.T) {
		parts := make([]string, 7)
		for i := range parts {
			parts[i] = fmt.Sprintf("part %d ", i)
		}
		index := buildTestIndex(t, parts...)

		// Every batch picks its first chunk.
		mockLLM := &MockLLM{chatResponse: "Doc: 1, Relevance: 5"}

		retriever, err := index.AsRetriever(docsum.StrategyLLM, docsum.RetrieverConfig{
			LLM:             mockLLM,
			ChoiceBatchSize: 3,
			Concurrency:     2,
		})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		chunks, err := retriever.Retrieve(context.Background(), "query")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if calls := len(mockLLM.calls()); calls != 3 {
			t.Errorf("Expected 3 batches, got %d", calls)
		}
		expected := []int{0, 3, 6}
		if len(chunks) != len(expected) {
			t.Fatalf("Expected %d chunks, got %d", len(expected), len(chunks))
		}
		for i, chunk := range chunks {
			if chunk.OrderIndex != expected[i] {
				t.Errorf("Expected chunk %d to have OrderIndex %d, got %d", i, expected[i], chunk.OrderIndex)
			}
		}
	})

	t.Run("No selection falls back to every chunk", func(t *testing.T) {
		index := buildTestIndex(t, "a ", "b ", "c")
		mockLLM := &MockLLM{chatResponse: "None of these documents are relevant."}

		retriever, err := index.AsRetriever(docsum.StrategyLLM, docsum.RetrieverConfig{LLM: mockLLM})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		chunks, err := retriever.Retrieve(context.Background(), "query")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(chunks) != 3 {
			t.Errorf("Expected all 3 chunks, got %d", len(chunks))
		}
	})

	t.Run("LLM error", func(t *testing.T) {
		index := buildTestIndex(t, "a ", "b")
		llmErr := errors.New("rate limited")

		retriever, err := index.AsRetriever(docsum.StrategyLLM, docsum.RetrieverConfig{
			LLM: &MockLLM{chatErr: llmErr},
		})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if _, err := retriever.Retrieve(context.Background(), "query"); !errors.Is(err, llmErr) {
			t.Errorf("Expected error %v, got %v", llmErr, err)
		}
	})
}

// keywordEmbedding embeds a text by counting a few keywords, with a small constant component so
// that no vector is zero.
func keywordEmbedding(_ context.Context, text string) ([]float32, error) {
	text = strings.ToLower(text)
	keywords := []string{"fox", "dog", "cat"}
	vec := make([]float32, len(keywords)+1)
	for i, keyword := range keywords {
		vec[i] = float32(strings.Count(text, keyword))
	}
	vec[len(keywords)] = 0.1
	return vec, nil
}

func TestEmbeddingRetriever(t *testing.T) {
	index := buildTestIndex(t, "The cat sleeps. ", "The fox runs. ", "A dog barks. ", "Another fox hides.")

	retriever, err := index.AsRetriever(docsum.StrategyEmbedding, docsum.RetrieverConfig{
		Embedder:       keywordEmbedding,
		SimilarityTopK: 2,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	chunks, err := retriever.Retrieve(context.Background(), "fox")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].OrderIndex != 1 || chunks[1].OrderIndex != 3 {
		t.Errorf("Expected the fox chunks in document order, got %d and %d",
			chunks[0].OrderIndex, chunks[1].OrderIndex)
	}
	for _, chunk := range chunks {
		if chunk.Score <= 0.9 {
			t.Errorf("Expected a high similarity for %q, got %v", chunk.Content, chunk.Score)
		}
	}
}

func TestEmbeddingRetriever_TopKLargerThanIndex(t *testing.T) {
	index, err := docsum.BuildIndex(context.Background(), docsum.Document{ID: "doc", Content: "fox"},
		docsum.ChunkingPolicy{}, handler.Default{Unit: handler.UnitRune}, nil)
	if err != nil {
		t.Fatalf("Failed to build index: %v", err)
	}

	retriever, err := index.AsRetriever(docsum.StrategyEmbedding, docsum.RetrieverConfig{
		Embedder:       keywordEmbedding,
		SimilarityTopK: 5,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	chunks, err := retriever.Retrieve(context.Background(), "fox")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Errorf("Expected 1 chunk, got %d", len(chunks))
	}
}
