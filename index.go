package docsum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// DocumentHandler splits document content into chunks.
type DocumentHandler interface {
	// ChunksDocument splits content into chunks no larger than policy.ChunkSize units.
	// The returned chunks must be in document order and carry byte offsets into content.
	// IDs are not required, they are generated by BuildIndex from the document ID and the
	// order of the chunks.
	ChunksDocument(ctx context.Context, content string, policy ChunkingPolicy) ([]Chunk, error)
}

// ChunkingPolicy controls how a document is split before indexing.
type ChunkingPolicy struct {
	ChunkSize    int `yaml:"chunk_size" toml:"chunk_size" env:"CHUNK_SIZE"`
	ChunkOverlap int `yaml:"chunk_overlap" toml:"chunk_overlap" env:"CHUNK_OVERLAP"`
}

// DefaultChunkSize is the chunk size used when a policy leaves it unset.
const DefaultChunkSize = 40

var (
	// ErrInvalidChunkSize is returned for a negative chunk size.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	// ErrInvalidChunkOverlap is returned for a negative overlap or one not smaller than the chunk size.
	ErrInvalidChunkOverlap = errors.New("chunk overlap must be non-negative and smaller than chunk size")
)

// WithDefaults returns the policy with unset fields replaced by their defaults.
func (p ChunkingPolicy) WithDefaults() ChunkingPolicy {
	if p.ChunkSize == 0 {
		p.ChunkSize = DefaultChunkSize
	}
	return p
}

// Validate reports whether the policy can be used for chunking.
func (p ChunkingPolicy) Validate() error {
	if p.ChunkSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, p.ChunkSize)
	}
	if p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSize {
		return fmt.Errorf("%w: overlap %d, size %d", ErrInvalidChunkOverlap, p.ChunkOverlap, p.ChunkSize)
	}
	return nil
}

// SummaryIndex is an in-memory list index holding every chunk of one document.
// It lives only for the duration of a request.
type SummaryIndex struct {
	docID  string
	chunks []Chunk
	logger *slog.Logger
}

// BuildIndex chunks the document with the given handler and returns a SummaryIndex over all chunks.
// It returns an error if the policy is invalid, chunking fails, or a non-empty document yields
// no chunks.
func BuildIndex(
	ctx context.Context,
	doc Document,
	policy ChunkingPolicy,
	handler DocumentHandler,
	logger *slog.Logger,
) (*SummaryIndex, error) {
	if handler == nil {
		return nil, ErrHandlerRequired
	}

	policy = policy.WithDefaults()
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(
		slog.String("package", "docsum"),
		slog.String("function", "BuildIndex"),
	)

	content := cleanContent(doc.Content)

	chunks, err := handler.ChunksDocument(ctx, content, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk document: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(chunks) == 0 && doc.Content != "" {
		return nil, ErrNoChunks
	}

	ordered := make([]Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start < ordered[j].Start
	})

	// Handlers may number chunks per section, renumber them into one sequence.
	for i := range ordered {
		ordered[i].OrderIndex = i
		ordered[i].ID = ordered[i].genID(doc.ID)
	}

	logger.Debug("Built summary index", "document", doc.ID, "chunks", len(ordered))

	return &SummaryIndex{
		docID:  doc.ID,
		chunks: ordered,
		logger: logger,
	}, nil
}

// DocumentID returns the ID of the indexed document.
func (s *SummaryIndex) DocumentID() string {
	return s.docID
}

// Chunks returns a copy of the indexed chunks in document order.
func (s *SummaryIndex) Chunks() []Chunk {
	res := make([]Chunk, len(s.chunks))
	copy(res, s.chunks)
	return res
}

// AsQueryEngine combines a retriever and a synthesizer into a QueryEngine over this index.
func (s *SummaryIndex) AsQueryEngine(retriever Retriever, synthesizer Synthesizer) QueryEngine {
	return QueryEngine{
		Retriever:   retriever,
		Synthesizer: synthesizer,
		logger:      s.logger,
	}
}
