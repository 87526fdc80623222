package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	docsum "github.com/MegaGrindStone/go-docsum"
	"github.com/MegaGrindStone/go-docsum/internal"
	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// Semantic implements document handling with semantically meaningful chunk boundaries.
// It asks an LLM where the topical sections of the document begin, then windows every section
// with the embedded Default handler. Chunk sizes and gap-free coverage are the same as Default,
// only the cut points move to section starts.
type Semantic struct {
	Default

	// LLM is the language model to use for finding sections.
	// This field is required and must be set before using the handler.
	LLM docsum.LLM

	// TokenThreshold is the maximum number of tokens that can be sent to the LLM
	// in a single request. Larger documents are split into windows of this size first,
	// and each window is sectioned separately. Defaults to 8000 if not set.
	TokenThreshold int

	// Logger reports LLM failures that were replaced by plain windows. Optional.
	Logger *slog.Logger
}

type sectionInfo struct {
	SectionSummary string `json:"section_summary"`
	StartPosition  int    `json:"start_position"`
}

type semanticChunkResponse struct {
	Sections []sectionInfo `json:"sections"`
}

// ChunksDocument splits a document's content into chunks aligned to the sections the LLM finds.
// It falls back to the plain Default windows for any part where the LLM call fails or its reply
// cannot be parsed. It returns an error if the LLM is not configured or ctx is done.
func (s Semantic) ChunksDocument(
	ctx context.Context,
	content string,
	policy docsum.ChunkingPolicy,
) ([]docsum.Chunk, error) {
	if s.LLM == nil {
		return nil, docsum.ErrLLMRequired
	}

	policy = policy.WithDefaults()
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if content == "" {
		return nil, nil
	}

	threshold := s.TokenThreshold
	if threshold == 0 {
		threshold = defaultSemanticTokenThreshold
	}

	windows, err := internal.SplitTokens(content, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to pre-chunk content: %w", err)
	}

	starts := make([]int, 0, len(windows))
	base := 0
	for _, window := range windows {
		offsets, err := s.sectionOffsets(ctx, window)
		if err != nil {
			return nil, err
		}
		for _, offset := range offsets {
			starts = append(starts, base+offset)
		}
		base += len(window)
	}

	sort.Ints(starts)
	return chunkSections(ctx, s.Default, content, dedupeOffsets(starts), policy)
}

// sectionOffsets returns the byte offsets where sections of content start, always including 0.
func (s Semantic) sectionOffsets(ctx context.Context, content string) ([]int, error) {
	prompt := strings.ReplaceAll(semanticChunkingPrompt, "{{.Content}}", content)

	offsets := []int{0}

	response, err := s.LLM.Chat(ctx, []string{prompt})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("failed to generate semantic sections: %w", ctxErr)
		}
		s.logger().Warn("Semantic sectioning failed, using plain windows", "error", err)
		return offsets, nil
	}

	sections, ok := parseSections(response)
	if !ok {
		return offsets, nil
	}

	for _, section := range sections {
		pos := section.StartPosition
		if pos <= 0 || pos >= len(content) {
			continue
		}
		// Positions from the LLM may land inside a multi-byte rune.
		for pos > 0 && !utf8.RuneStart(content[pos]) {
			pos--
		}
		offsets = append(offsets, pos)
	}

	return offsets, nil
}

func (s Semantic) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger.With(slog.String("module", "semantic"))
}

func parseSections(response string) ([]sectionInfo, bool) {
	jsonStart := strings.Index(response, "{")
	jsonEnd := strings.LastIndex(response, "}")
	if jsonStart < 0 || jsonEnd <= jsonStart {
		return nil, false
	}

	repaired, err := jsonrepair.RepairJSON(response[jsonStart : jsonEnd+1])
	if err != nil {
		return nil, false
	}

	var semanticResponse semanticChunkResponse
	if err := json.Unmarshal([]byte(repaired), &semanticResponse); err != nil {
		return nil, false
	}
	if len(semanticResponse.Sections) == 0 {
		return nil, false
	}

	return semanticResponse.Sections, true
}
