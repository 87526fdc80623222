package main

import (
	"fmt"
	"log/slog"

	docsum "github.com/MegaGrindStone/go-docsum"
	"github.com/MegaGrindStone/go-docsum/config"
	"github.com/MegaGrindStone/go-docsum/handler"
	"github.com/MegaGrindStone/go-docsum/llm"
	"github.com/MegaGrindStone/go-docsum/storage"
)

func newSummarizer(cfg config.Config, logger *slog.Logger) (docsum.Summarizer, error) {
	chat, err := newLLM(cfg.LLM, logger)
	if err != nil {
		return docsum.Summarizer{}, err
	}

	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return docsum.Summarizer{}, err
	}

	unit, err := handler.ParseUnit(cfg.ChunkUnit)
	if err != nil {
		return docsum.Summarizer{}, err
	}
	strategy, err := docsum.ParseRetrievalStrategy(cfg.Strategy)
	if err != nil {
		return docsum.Summarizer{}, err
	}
	mode, err := docsum.ParseResponseMode(cfg.ResponseMode)
	if err != nil {
		return docsum.Summarizer{}, err
	}

	backend := docsum.IndexBackend{
		Handler:         newHandler(cfg.Chunker, unit, chat, logger),
		LLM:             chat,
		Embedder:        embedder,
		ResponseMode:    mode,
		ChoiceBatchSize: cfg.ChoiceBatchSize,
		SimilarityTopK:  cfg.SimilarityTopK,
		Concurrency:     cfg.Concurrency,
		ContextWindow:   cfg.ContextWindow,
		NumOutput:       cfg.NumOutput,
		Logger:          logger,
	}

	summarizer := docsum.NewSummarizer(backend, logger)
	summarizer.Policy = cfg.Chunking
	summarizer.Strategy = strategy
	summarizer.Timeout = cfg.Timeout

	return summarizer, nil
}

func newLLM(cfg config.LLM, logger *slog.Logger) (docsum.LLM, error) {
	switch cfg.Provider {
	case "openai":
		return llm.NewOpenAI(cfg.APIKey, cfg.Model, cfg.Parameters, logger), nil
	case "openai-compat":
		return llm.NewOpenAICompat(cfg.Host, cfg.APIKey, cfg.Model, cfg.Parameters, logger), nil
	case "openai-responses":
		return llm.NewOpenAIResponses(cfg.APIKey, cfg.Model, cfg.Parameters, logger), nil
	case "ollama":
		return llm.NewOllama(cfg.Host, cfg.Model, cfg.Parameters, logger)
	case "anthropic":
		maxTokens := cfg.MaxTokens
		if maxTokens == 0 {
			maxTokens = 1024
		}
		return llm.NewAnthropic(cfg.Host, cfg.APIKey, cfg.Model, maxTokens, cfg.Parameters, logger), nil
	case "openrouter":
		return llm.NewOpenRouter(cfg.Host, cfg.APIKey, cfg.Model, cfg.Parameters, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func newEmbedder(cfg config.Embedding) (docsum.EmbeddingFunc, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "openai":
		model := cfg.Model
		if model == "" {
			model = "text-embedding-3-small"
		}
		return llm.NewOpenAIEmbedding(cfg.APIKey, model), nil
	case "ollama":
		return llm.NewOllamaEmbedding(cfg.Host, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func newHandler(chunker string, unit handler.Unit, chat docsum.LLM, logger *slog.Logger) docsum.DocumentHandler {
	base := handler.Default{Unit: unit}

	switch chunker {
	case "markdown":
		return handler.Markdown{Default: base}
	case "semantic":
		return handler.Semantic{Default: base, LLM: chat, Logger: logger}
	case "go":
		return handler.Go{Default: base}
	default:
		return base
	}
}

func newJournal(cfg config.Journal) (storage.Journal, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "bolt":
		return storage.NewBolt(cfg.Path)
	case "redis":
		return storage.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}
}
