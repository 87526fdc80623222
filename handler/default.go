package handler

import (
	"context"
	"fmt"

	docsum "github.com/MegaGrindStone/go-docsum"
	"github.com/MegaGrindStone/go-docsum/internal"
)

// Default implements the DocumentHandler interface with a fixed-size window over the units of
// the document. With no overlap the chunks cover the document without gaps, so concatenating
// their contents reproduces the input exactly.
type Default struct {
	// Unit is the unit chunk sizes are counted in. Defaults to UnitToken.
	Unit Unit
}

// ChunksDocument splits a document's content into chunks of at most policy.ChunkSize units.
// Consecutive chunks share policy.ChunkOverlap units.
// It returns an error if the policy is invalid or tokenization fails.
func (d Default) ChunksDocument(
	ctx context.Context,
	content string,
	policy docsum.ChunkingPolicy,
) ([]docsum.Chunk, error) {
	policy = policy.WithDefaults()
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return d.window(content, 0, 0, policy)
}

// window chunks content, which starts at byte offset base in the document, numbering the
// chunks from firstIndex.
func (d Default) window(content string, base, firstIndex int, policy docsum.ChunkingPolicy) ([]docsum.Chunk, error) {
	if content == "" {
		return nil, nil
	}

	spans, err := d.spans(content)
	if err != nil {
		return nil, err
	}

	var results []docsum.Chunk
	for start := 0; start < spans.Len(); {
		end, size := spans.Pack(start, policy.ChunkSize)

		results = append(results, docsum.Chunk{
			Content:    content[spans.Bounds[start]:spans.Bounds[end]],
			Size:       size,
			OrderIndex: firstIndex + len(results),
			Start:      base + spans.Bounds[start],
			End:        base + spans.Bounds[end],
		})

		if end == spans.Len() {
			break
		}
		start = spans.Rewind(start, end, policy.ChunkOverlap)
	}

	return results, nil
}

// spans splits content into pieces that chunk boundaries may fall between. A rune spread over
// several tokens is one piece, so the unit count of a chunk is the real token count of its text.
func (d Default) spans(content string) (internal.Spans, error) {
	switch d.unit() {
	case UnitRune:
		return internal.RuneSpans(content), nil
	case UnitToken:
		spans, err := internal.TokenSpans(content)
		if err != nil {
			return internal.Spans{}, fmt.Errorf("failed to tokenize content: %w", err)
		}
		return spans, nil
	default:
		return internal.Spans{}, fmt.Errorf("%w: %q", ErrUnknownUnit, d.Unit)
	}
}

func (d Default) unit() Unit {
	if d.Unit == "" {
		return UnitToken
	}
	return d.Unit
}
