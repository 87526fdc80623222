package handler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	docsum "github.com/MegaGrindStone/go-docsum"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Markdown implements the DocumentHandler interface for Markdown documents.
// It parses the document with goldmark, cuts it into sections at every heading, and windows each
// section with the embedded Default handler, so no chunk spans two sections.
// The chunks still cover the whole document without gaps.
type Markdown struct {
	Default
}

// ChunksDocument splits Markdown content into heading-aligned chunks of at most
// policy.ChunkSize units.
func (m Markdown) ChunksDocument(
	ctx context.Context,
	content string,
	policy docsum.ChunkingPolicy,
) ([]docsum.Chunk, error) {
	policy = policy.WithDefaults()
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if content == "" {
		return nil, nil
	}

	starts, err := headingOffsets(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse markdown: %w", err)
	}

	return chunkSections(ctx, m.Default, content, starts, policy)
}

// headingOffsets returns the sorted byte offsets of the lines holding a heading, always
// including 0.
func headingOffsets(content string) ([]int, error) {
	source := []byte(content)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	offsets := []int{0}
	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := node.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}

		lines := heading.Lines()
		if lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		// Segments point at the heading text, move back to the start of its line.
		pos := lines.At(0).Start
		lineStart := strings.LastIndexByte(content[:pos], '\n') + 1
		offsets = append(offsets, lineStart)

		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}

	sort.Ints(offsets)
	return dedupeOffsets(offsets), nil
}

// chunkSections windows every section [starts[i], starts[i+1]) of content with d.
func chunkSections(
	ctx context.Context,
	d Default,
	content string,
	starts []int,
	policy docsum.ChunkingPolicy,
) ([]docsum.Chunk, error) {
	var results []docsum.Chunk
	for i, start := range starts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := len(content)
		if i+1 < len(starts) {
			end = starts[i+1]
		}

		chunks, err := d.window(content[start:end], start, len(results), policy)
		if err != nil {
			return nil, fmt.Errorf("failed to chunk section %d: %w", i, err)
		}
		results = append(results, chunks...)
	}

	return results, nil
}

func dedupeOffsets(sorted []int) []int {
	res := sorted[:0]
	for i, v := range sorted {
		if i > 0 && v == sorted[i-1] {
			continue
		}
		res = append(res, v)
	}
	return res
}
