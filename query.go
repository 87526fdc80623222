package docsum

import (
	"context"
	"fmt"
	"log/slog"
)

// QueryEngine answers queries against an index by retrieving chunks and synthesizing an answer
// from them.
type QueryEngine struct {
	Retriever   Retriever
	Synthesizer Synthesizer

	logger *slog.Logger
}

// Response is the result of a query.
type Response struct {
	Answer       string
	SourceChunks []ScoredChunk
}

func (r Response) String() string {
	return r.Answer
}

// Query retrieves the chunks relevant to query and synthesizes an answer from them.
// It returns ErrEmptyAnswer if the language model produced no text.
func (q QueryEngine) Query(ctx context.Context, query string) (Response, error) {
	logger := q.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("function", "Query"))

	chunks, err := q.Retriever.Retrieve(ctx, query)
	if err != nil {
		return Response{}, fmt.Errorf("failed to retrieve chunks: %w", err)
	}

	logger.Info("Retrieved chunks", "count", len(chunks))

	synth := q.Synthesizer
	if synth.Logger == nil {
		synth.Logger = logger
	}

	answer, err := synth.Synthesize(ctx, query, chunks)
	if err != nil {
		return Response{}, fmt.Errorf("failed to synthesize answer: %w", err)
	}
	if answer == "" {
		return Response{}, ErrEmptyAnswer
	}

	return Response{
		Answer:       answer,
		SourceChunks: chunks,
	}, nil
}
