package docsum

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput matches every InvalidInputError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIndexConstruction matches every IndexConstructionError.
	ErrIndexConstruction = errors.New("index construction failed")
	// ErrQueryExecution matches every QueryExecutionError.
	ErrQueryExecution = errors.New("query execution failed")

	// ErrEmptyAnswer is returned when the language model produced no answer text.
	ErrEmptyAnswer = errors.New("empty answer")
	// ErrNoChunks is returned when chunking a non-empty document yielded nothing.
	ErrNoChunks = errors.New("document produced no chunks")
	// ErrHandlerRequired is returned when an IndexBackend has no DocumentHandler.
	ErrHandlerRequired = errors.New("document handler is required")
	// ErrLLMRequired is returned when an operation needs a language model and none is set.
	ErrLLMRequired = errors.New("llm is required")
	// ErrEmbeddingRequired is returned by the embedding strategy when no EmbeddingFunc is set.
	ErrEmbeddingRequired = errors.New("embedding func is required")
	// ErrBackendRequired is returned when a Summarizer has no Backend.
	ErrBackendRequired = errors.New("backend is required")
)

// InvalidInputError reports a request that was rejected before any backend call.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

// Is reports whether target is ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// IndexConstructionError reports a failure while chunking the document or building the index.
type IndexConstructionError struct {
	Err error
}

func (e *IndexConstructionError) Error() string {
	return fmt.Sprintf("%s: %v", ErrIndexConstruction, e.Err)
}

func (e *IndexConstructionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrIndexConstruction.
func (e *IndexConstructionError) Is(target error) bool {
	return target == ErrIndexConstruction
}

// QueryExecutionError reports a failure while retrieving or synthesizing the answer,
// including a request that ran out of time.
type QueryExecutionError struct {
	Err error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", ErrQueryExecution, e.Err)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrQueryExecution.
func (e *QueryExecutionError) Is(target error) bool {
	return target == ErrQueryExecution
}

// Timeout reports whether the query failed because its deadline was exceeded.
func (e *QueryExecutionError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
