package docsum_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	docsum "github.com/MegaGrindStone/go-docsum"
	"github.com/MegaGrindStone/go-docsum/handler"
)

func TestQuery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	// logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
	// 	Level: slog.LevelDebug,
	// }))

	document := strings.Repeat("Filler sentence about nothing. ", 20) +
		"The fox lives in a den near the river. " +
		strings.Repeat("More filler about other things. ", 20)

	index, err := docsum.BuildIndex(context.Background(), docsum.Document{ID: "doc", Content: document},
		docsum.ChunkingPolicy{ChunkSize: 40}, handler.Default{}, logger)
	if err != nil {
		t.Fatalf("Failed to build index: %v", err)
	}
	if len(index.Chunks()) < 3 {
		t.Fatalf("Expected several chunks, got %d", len(index.Chunks()))
	}

	t.Run("Successful query", func(t *testing.T) {
		mockLLM := &MockLLM{
			respond: func(prompt string) (string, error) {
				if !isChoicePrompt(prompt) {
					return "The fox lives in a den near the river.", nil
				}
				// Pick whichever numbered excerpt mentions the fox.
				parts := strings.Split(prompt, "Document ")
				for _, part := range parts[1:] {
					if strings.Contains(part, "fox") {
						num := part[:strings.Index(part, ":")]
						return `{"documents": [{"doc": ` + num + `, "relevance": 10}]}`, nil
					}
				}
				return `{"documents": []}`, nil
			},
		}

		retriever, err := index.AsRetriever(docsum.StrategyLLM, docsum.RetrieverConfig{LLM: mockLLM})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		engine := index.AsQueryEngine(retriever, docsum.Synthesizer{LLM: mockLLM})

		resp, err := engine.Query(context.Background(), "Where does the fox live?")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if resp.String() != "The fox lives in a den near the river." {
			t.Errorf("Unexpected answer %q", resp.String())
		}
		if len(resp.SourceChunks) == 0 || len(resp.SourceChunks) >= len(index.Chunks()) {
			t.Errorf("Expected a strict subset of chunks, got %d of %d",
				len(resp.SourceChunks), len(index.Chunks()))
		}
		for _, chunk := range resp.SourceChunks {
			if !strings.Contains(chunk.Content, "fox") {
				t.Errorf("Unexpected source chunk %q", chunk.Content)
			}
		}
	})

	t.Run("Empty answer", func(t *testing.T) {
		mockLLM := &MockLLM{chatResponse: "<think>nothing to say</think>"}

		retriever, err := index.AsRetriever(docsum.StrategyAll, docsum.RetrieverConfig{})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		engine := index.AsQueryEngine(retriever, docsum.Synthesizer{LLM: mockLLM})

		if _, err := engine.Query(context.Background(), "query"); !errors.Is(err, docsum.ErrEmptyAnswer) {
			t.Errorf("Expected ErrEmptyAnswer, got %v", err)
		}
	})

	t.Run("Retriever error", func(t *testing.T) {
		llmErr := errors.New("selection failed")

		retriever, err := index.AsRetriever(docsum.StrategyLLM, docsum.RetrieverConfig{
			LLM: &MockLLM{chatErr: llmErr},
		})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		engine := index.AsQueryEngine(retriever, docsum.Synthesizer{LLM: &MockLLM{chatResponse: "x"}})

		if _, err := engine.Query(context.Background(), "query"); !errors.Is(err, llmErr) {
			t.Errorf("Expected error %v, got %v", llmErr, err)
		}
	})
}

func TestIndexBackend(t *testing.T) {
	t.Run("Answers through the summary index", func(t *testing.T) {
		mockLLM := &MockLLM{chatResponse: "All of it."}
		backend := docsum.IndexBackend{
			Handler:      handler.Default{Unit: handler.UnitRune},
			LLM:          mockLLM,
			ResponseMode: docsum.ModeRefine,
		}

		index, err := backend.BuildIndex(context.Background(), strings.Repeat("x", 100), docsum.ChunkingPolicy{ChunkSize: 40})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(index.Chunks()) != 3 {
			t.Fatalf("Expected 3 chunks, got %d", len(index.Chunks()))
		}
		if index.DocumentID() == "" {
			t.Errorf("Expected a generated document ID")
		}

		answer, err := backend.Query(context.Background(), index, "query", docsum.StrategyAll)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if answer != "All of it." {
			t.Errorf("Unexpected answer %q", answer)
		}
		// Refine makes one call per chunk.
		if calls := len(mockLLM.calls()); calls != 3 {
			t.Errorf("Expected 3 LLM calls, got %d", calls)
		}
	})

	t.Run("Build error returns a nil index", func(t *testing.T) {
		backend := docsum.IndexBackend{}

		index, err := backend.BuildIndex(context.Background(), "text", docsum.ChunkingPolicy{})
		if !errors.Is(err, docsum.ErrHandlerRequired) {
			t.Errorf("Expected ErrHandlerRequired, got %v", err)
		}
		if index != nil {
			t.Errorf("Expected a nil index, got %#v", index)
		}
	})

	t.Run("Foreign index", func(t *testing.T) {
		backend := docsum.IndexBackend{LLM: &MockLLM{}}

		if _, err := backend.Query(context.Background(), MockIndex{}, "query", docsum.StrategyAll); err == nil {
			t.Error("Expected error, got nil")
		}
	})
}

func TestDescribe(t *testing.T) {
	desc := docsum.Describe()

	if desc.Category != "document_processing" {
		t.Errorf("Unexpected category %q", desc.Category)
	}

	required := map[string]bool{}
	for _, input := range desc.Inputs {
		required[input.Name] = input.Required
	}
	if !required["document"] || !required["query"] {
		t.Errorf("Expected document and query to be required inputs, got %+v", desc.Inputs)
	}
	if len(desc.Outputs) != 1 || desc.Outputs[0].Name != "answer" {
		t.Errorf("Expected a single answer output, got %+v", desc.Outputs)
	}
}
