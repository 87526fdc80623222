package handler

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strings"

	docsum "github.com/MegaGrindStone/go-docsum"
)

// Go implements specialized document handling for Go source code.
// It parses the code with go/parser and starts a new section at every top-level declaration,
// including its doc comment, so functions, types and grouped constants or variables are never
// mixed in one chunk. The package clause and imports form the first section.
type Go struct {
	Default
}

// ChunksDocument splits Go source code into declaration-aligned chunks of at most
// policy.ChunkSize units.
// It returns an error if the code does not parse or the policy is invalid.
func (g Go) ChunksDocument(
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

	starts, err := declarationOffsets(content)
	if err != nil {
		return nil, err
	}

	return chunkSections(ctx, g.Default, content, starts, policy)
}

// declarationOffsets returns the sorted byte offsets of the lines where top-level declarations
// or their doc comments begin, always including 0.
func declarationOffsets(content string) ([]int, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", content, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Go code: %w", err)
	}

	offsets := []int{0}
	for _, decl := range file.Decls {
		pos := decl.Pos()
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Doc != nil {
				pos = d.Doc.Pos()
			}
		case *ast.GenDecl:
			// Imports stay in the header section.
			if d.Tok == token.IMPORT {
				continue
			}
			if d.Doc != nil {
				pos = d.Doc.Pos()
			}
		}

		offset := fset.Position(pos).Offset
		offsets = append(offsets, strings.LastIndexByte(content[:offset], '\n')+1)
	}

	sort.Ints(offsets)
	return dedupeOffsets(offsets), nil
}
