package docsum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"golang.org/x/sync/errgroup"
)

// RetrievalStrategy selects how a Retriever picks chunks from a SummaryIndex.
type RetrievalStrategy string

const (
	// StrategyLLM lets the language model choose the relevant chunks. It is the default.
	StrategyLLM RetrievalStrategy = "llm"
	// StrategyAll returns every chunk.
	StrategyAll RetrievalStrategy = "all"
	// StrategyEmbedding returns the chunks most similar to the query by embedding.
	StrategyEmbedding RetrievalStrategy = "embedding"
)

// ErrUnknownStrategy is returned for an unrecognized retrieval strategy.
var ErrUnknownStrategy = errors.New("unknown retrieval strategy")

// ParseRetrievalStrategy converts a configuration value into a RetrievalStrategy.
// An empty value yields StrategyLLM, and "default" is accepted as an alias of StrategyAll.
func ParseRetrievalStrategy(s string) (RetrievalStrategy, error) {
	switch strategy := RetrievalStrategy(strings.ToLower(strings.TrimSpace(s))); strategy {
	case "":
		return StrategyLLM, nil
	case "default":
		return StrategyAll, nil
	case StrategyLLM, StrategyAll, StrategyEmbedding:
		return strategy, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Retriever selects the chunks used to answer a query.
type Retriever interface {
	// Retrieve returns the chunks relevant to query in document order.
	Retrieve(ctx context.Context, query string) ([]ScoredChunk, error)
}

// RetrieverConfig holds the dependencies and tuning of the retrievers built by AsRetriever.
type RetrieverConfig struct {
	LLM      LLM
	Embedder EmbeddingFunc

	// ChoiceBatchSize is the number of chunks shown to the LLM per selection call. Defaults to 10.
	ChoiceBatchSize int
	// SimilarityTopK is the number of chunks returned by the embedding strategy. Defaults to 2.
	SimilarityTopK int
	// Concurrency bounds the parallel LLM or embedding calls. Defaults to 1.
	Concurrency int
}

const (
	defaultChoiceBatchSize = 10
	defaultSimilarityTopK  = 2
)

// AsRetriever builds a Retriever over this index for the given strategy.
// It returns an error if the strategy is unknown or misses a required dependency.
func (s *SummaryIndex) AsRetriever(strategy RetrievalStrategy, cfg RetrieverConfig) (Retriever, error) {
	if strategy == "" {
		strategy = StrategyLLM
	}
	concurrency := max(cfg.Concurrency, 1)

	switch strategy {
	case StrategyAll:
		return allRetriever{chunks: s.chunks}, nil
	case StrategyLLM:
		if cfg.LLM == nil {
			return nil, ErrLLMRequired
		}
		batchSize := cfg.ChoiceBatchSize
		if batchSize <= 0 {
			batchSize = defaultChoiceBatchSize
		}
		return llmRetriever{
			chunks:      s.chunks,
			llm:         cfg.LLM,
			batchSize:   batchSize,
			concurrency: concurrency,
			logger:      s.logger.With(slog.String("retriever", string(StrategyLLM))),
		}, nil
	case StrategyEmbedding:
		if cfg.Embedder == nil {
			return nil, ErrEmbeddingRequired
		}
		topK := cfg.SimilarityTopK
		if topK <= 0 {
			topK = defaultSimilarityTopK
		}
		return embeddingRetriever{
			docID:       s.docID,
			chunks:      s.chunks,
			embed:       cfg.Embedder,
			topK:        topK,
			concurrency: concurrency,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

type allRetriever struct {
	chunks []Chunk
}

func (a allRetriever) Retrieve(context.Context, string) ([]ScoredChunk, error) {
	res := make([]ScoredChunk, len(a.chunks))
	for i, chunk := range a.chunks {
		res[i] = ScoredChunk{Chunk: chunk, Score: 1}
	}
	return res, nil
}

type llmRetriever struct {
	chunks      []Chunk
	llm         LLM
	batchSize   int
	concurrency int
	logger      *slog.Logger
}

type choice struct {
	Doc       int     `json:"doc"`
	Relevance float64 `json:"relevance"`
}

type choiceResponse struct {
	Documents []choice `json:"documents"`
}

var choiceLine = regexp.MustCompile(`(?i)doc(?:ument)?"?\s*:?\s*(\d+)\s*,\s*"?relevance"?\s*:?\s*(\d+(?:\.\d+)?)`)

func (l llmRetriever) Retrieve(ctx context.Context, query string) ([]ScoredChunk, error) {
	batches := make([][]Chunk, 0, len(l.chunks)/l.batchSize+1)
	for start := 0; start < len(l.chunks); start += l.batchSize {
		batches = append(batches, l.chunks[start:min(start+l.batchSize, len(l.chunks))])
	}

	selected := make([][]ScoredChunk, len(batches))

	eg, ctx := errgroup.WithContext(ctx)
	// Semaphore to limit concurrent LLM calls
	sem := make(chan struct{}, l.concurrency)

	for i, batch := range batches {
		eg.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			prompt, err := promptTemplate("choice-select", choiceSelectPrompt, choiceSelectPromptData{
				Chunks: batch,
				Query:  query,
			})
			if err != nil {
				return fmt.Errorf("failed to generate choice select prompt: %w", err)
			}

			reply, err := l.llm.Chat(ctx, []string{prompt})
			if err != nil {
				return fmt.Errorf("failed to select chunks of batch %d: %w", i, err)
			}

			choices := parseChoices(reply, len(batch))
			l.logger.Debug("Chunks selected", "batch", i, "selected", len(choices), "size", len(batch))

			res := make([]ScoredChunk, len(choices))
			for j, c := range choices {
				res[j] = ScoredChunk{Chunk: batch[c.Doc-1], Score: c.Relevance}
			}
			selected[i] = res

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var results []ScoredChunk
	for _, res := range selected {
		results = append(results, res...)
	}

	if len(results) == 0 {
		l.logger.Warn("LLM selected no chunks, using every chunk", "chunks", len(l.chunks))
		return allRetriever{chunks: l.chunks}.Retrieve(ctx, query)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].OrderIndex < results[j].OrderIndex
	})

	return results, nil
}

// parseChoices extracts the chosen chunk numbers from an LLM reply. Numbers outside 1..size and
// duplicates are dropped.
func parseChoices(reply string, size int) []choice {
	reply = removeMarkdownBackticks(cleanAnswer(reply))

	var parsed []choice

	if jsonStart := strings.Index(reply, "{"); jsonStart >= 0 {
		repaired, err := jsonrepair.RepairJSON(reply[jsonStart:])
		if err == nil {
			var resp choiceResponse
			if err := json.Unmarshal([]byte(repaired), &resp); err == nil {
				parsed = resp.Documents
			}
		}
	}

	if len(parsed) == 0 {
		for _, match := range choiceLine.FindAllStringSubmatch(reply, -1) {
			doc, err := strconv.Atoi(match[1])
			if err != nil {
				continue
			}
			relevance, err := strconv.ParseFloat(match[2], 64)
			if err != nil {
				continue
			}
			parsed = append(parsed, choice{Doc: doc, Relevance: relevance})
		}
	}

	seen := make(map[int]struct{}, len(parsed))
	res := make([]choice, 0, len(parsed))
	for _, c := range parsed {
		if c.Doc < 1 || c.Doc > size {
			continue
		}
		if _, ok := seen[c.Doc]; ok {
			continue
		}
		seen[c.Doc] = struct{}{}
		res = append(res, c)
	}

	return res
}
