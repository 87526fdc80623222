package docsum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Request is a single summarization request.
type Request struct {
	Document string `json:"document"`
	Query    string `json:"query"`
}

// Answer is the result of a summarization request.
type Answer struct {
	Answer string `json:"answer"`
}

// Backend is the capability that indexes documents and answers queries against them.
// Implementations must honour ctx cancellation.
type Backend interface {
	BuildIndex(ctx context.Context, text string, policy ChunkingPolicy) (Index, error)
	Query(ctx context.Context, index Index, query string, strategy RetrievalStrategy) (string, error)
}

// IndexBackend is the Backend that builds a SummaryIndex with a DocumentHandler and answers
// with a QueryEngine.
type IndexBackend struct {
	Handler  DocumentHandler
	LLM      LLM
	Embedder EmbeddingFunc

	ResponseMode    ResponseMode
	ChoiceBatchSize int
	SimilarityTopK  int
	Concurrency     int
	ContextWindow   int
	NumOutput       int

	Logger *slog.Logger
}

// BuildIndex wraps text in a Document with a fresh ID and builds a SummaryIndex from it.
func (b IndexBackend) BuildIndex(ctx context.Context, text string, policy ChunkingPolicy) (Index, error) {
	doc := Document{
		ID:      uuid.NewString(),
		Content: text,
	}
	index, err := BuildIndex(ctx, doc, policy, b.Handler, b.logger())
	if err != nil {
		return nil, err
	}
	return index, nil
}

// Query answers query against an index returned by BuildIndex.
func (b IndexBackend) Query(ctx context.Context, index Index, query string, strategy RetrievalStrategy) (string, error) {
	summaryIndex, ok := index.(*SummaryIndex)
	if !ok {
		return "", fmt.Errorf("unsupported index type %T", index)
	}

	retriever, err := summaryIndex.AsRetriever(strategy, RetrieverConfig{
		LLM:             b.LLM,
		Embedder:        b.Embedder,
		ChoiceBatchSize: b.ChoiceBatchSize,
		SimilarityTopK:  b.SimilarityTopK,
		Concurrency:     b.Concurrency,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create retriever: %w", err)
	}

	engine := summaryIndex.AsQueryEngine(retriever, Synthesizer{
		LLM:           b.LLM,
		Mode:          b.ResponseMode,
		ContextWindow: b.ContextWindow,
		NumOutput:     b.NumOutput,
		Concurrency:   b.Concurrency,
		Logger:        b.logger(),
	})

	resp, err := engine.Query(ctx, query)
	if err != nil {
		return "", err
	}

	return resp.String(), nil
}

func (b IndexBackend) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

// Summarizer runs the two stages of a request: building an index over the document and
// executing the query against it.
type Summarizer struct {
	Backend  Backend
	Policy   ChunkingPolicy
	Strategy RetrievalStrategy
	// Timeout bounds the whole request. Zero means no limit beyond the caller's context.
	Timeout time.Duration

	Logger *slog.Logger
}

var tracer = otel.Tracer("github.com/MegaGrindStone/go-docsum")

// NewSummarizer creates a Summarizer with the default chunking policy and retrieval strategy.
func NewSummarizer(backend Backend, logger *slog.Logger) Summarizer {
	return Summarizer{
		Backend:  backend,
		Policy:   ChunkingPolicy{ChunkSize: DefaultChunkSize},
		Strategy: StrategyLLM,
		Logger:   logger,
	}
}

// Summarize answers req.Query against req.Document.
//
// It returns an *InvalidInputError if the document or the query is empty, or the document holds
// nothing but NUL bytes and invalid UTF-8, an
// *IndexConstructionError if the document cannot be indexed, and a *QueryExecutionError if the
// query fails or the request runs out of time.
func (s Summarizer) Summarize(ctx context.Context, req Request) (Answer, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(
		slog.String("package", "docsum"),
		slog.String("function", "Summarize"),
	)

	if strings.TrimSpace(req.Document) == "" {
		return Answer{}, &InvalidInputError{Field: "document", Reason: "must not be empty"}
	}
	if strings.TrimSpace(cleanContent(req.Document)) == "" {
		return Answer{}, &InvalidInputError{Field: "document", Reason: "has no valid text"}
	}
	if strings.TrimSpace(req.Query) == "" {
		return Answer{}, &InvalidInputError{Field: "query", Reason: "must not be empty"}
	}

	policy := s.Policy.WithDefaults()
	if err := policy.Validate(); err != nil {
		return Answer{}, &InvalidInputError{Field: "chunking policy", Reason: err.Error()}
	}
	strategy := s.Strategy
	if strategy == "" {
		strategy = StrategyLLM
	}

	if s.Backend == nil {
		return Answer{}, &IndexConstructionError{Err: ErrBackendRequired}
	}

	ctx, span := tracer.Start(ctx, "docsum.Summarize", trace.WithAttributes(
		attribute.Int("docsum.document_bytes", len(req.Document)),
		attribute.Int("docsum.chunk_size", policy.ChunkSize),
		attribute.String("docsum.strategy", string(strategy)),
	))
	defer span.End()

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	start := time.Now()

	index, err := stage(ctx, "docsum.BuildIndex", func(ctx context.Context) (Index, error) {
		return s.Backend.BuildIndex(ctx, req.Document, policy)
	})
	if err == nil && index == nil {
		err = ErrNoChunks
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = &QueryExecutionError{Err: fmt.Errorf("indexing interrupted: %w", withCause(ctxErr, err))}
		} else {
			err = &IndexConstructionError{Err: err}
		}
		recordError(span, err)
		logger.Error("Failed to build index", "error", err)
		return Answer{}, err
	}

	logger.Debug("Index built", "chunks", len(index.Chunks()), "elapsed", time.Since(start))

	answer, err := stage(ctx, "docsum.Query", func(ctx context.Context) (string, error) {
		return s.Backend.Query(ctx, index, req.Query, strategy)
	})
	if err == nil && strings.TrimSpace(answer) == "" {
		err = ErrEmptyAnswer
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = &QueryExecutionError{Err: withCause(ctxErr, err)}
		} else {
			err = &QueryExecutionError{Err: err}
		}
		recordError(span, err)
		logger.Error("Failed to execute query", "error", err)
		return Answer{}, err
	}

	logger.Info("Summarized document", "chunks", len(index.Chunks()), "elapsed", time.Since(start))

	return Answer{Answer: answer}, nil
}

// stage runs fn in its own span and returns as soon as either fn finishes or ctx is done, so a
// backend that ignores ctx cannot hold the request past its deadline.
func stage[T any](ctx context.Context, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		value, err := fn(ctx)
		done <- result{value: value, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			recordError(span, res.err)
		}
		return res.value, res.err
	case <-ctx.Done():
		var zero T
		recordError(span, ctx.Err())
		return zero, ctx.Err()
	}
}

// withCause joins the context error with err unless err already carries it.
func withCause(ctxErr, err error) error {
	if errors.Is(err, ctxErr) {
		return err
	}
	return fmt.Errorf("%w: %w", ctxErr, err)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
