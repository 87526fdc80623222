package docsum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MegaGrindStone/go-docsum/internal"
	"golang.org/x/sync/errgroup"
)

// ResponseMode selects how a Synthesizer turns retrieved chunks into an answer.
type ResponseMode string

const (
	// ModeCompact packs the chunks into as few prompts as fit the context window and refines the
	// answer across them. It is the default.
	ModeCompact ResponseMode = "compact"
	// ModeRefine answers with the first chunk and refines the answer with every following chunk.
	ModeRefine ResponseMode = "refine"
	// ModeTreeSummarize summarizes packed chunks concurrently and summarizes the summaries until
	// one answer is left.
	ModeTreeSummarize ResponseMode = "tree_summarize"
	// ModeSimpleSummarize truncates all chunks into a single prompt.
	ModeSimpleSummarize ResponseMode = "simple_summarize"
	// ModeAccumulate answers against every packed prompt separately and joins the answers.
	ModeAccumulate ResponseMode = "accumulate"
)

// ErrUnknownResponseMode is returned for an unrecognized response mode.
var ErrUnknownResponseMode = errors.New("unknown response mode")

// ParseResponseMode converts a configuration value into a ResponseMode. An empty value yields
// ModeCompact.
func ParseResponseMode(s string) (ResponseMode, error) {
	switch mode := ResponseMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return ModeCompact, nil
	case ModeCompact, ModeRefine, ModeTreeSummarize, ModeSimpleSummarize, ModeAccumulate:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownResponseMode, s)
	}
}

// Synthesizer generates an answer to a query from retrieved chunks with a language model.
type Synthesizer struct {
	LLM  LLM
	Mode ResponseMode

	// ContextWindow is the number of tokens the LLM accepts. Defaults to 3900.
	ContextWindow int
	// NumOutput is the number of tokens reserved for the LLM reply. Defaults to 256.
	NumOutput int
	// Concurrency bounds the parallel LLM calls of tree_summarize and accumulate. Defaults to 1.
	Concurrency int

	Logger *slog.Logger
}

const (
	defaultContextWindow = 3900
	defaultNumOutput     = 256
	maxTreeDepth         = 8

	packSeparator       = "\n\n"
	accumulateSeparator = "\n---------------------\n"
)

// Synthesize answers query from the given chunks according to the configured mode.
// It returns an error if the LLM fails or the configuration is invalid.
func (s Synthesizer) Synthesize(ctx context.Context, query string, chunks []ScoredChunk) (string, error) {
	if s.LLM == nil {
		return "", ErrLLMRequired
	}
	if len(chunks) == 0 {
		return "", ErrNoChunks
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	mode := s.Mode
	if mode == "" {
		mode = ModeCompact
	}

	s.logger().Debug("Synthesizing answer", "mode", mode, "chunks", len(chunks))

	switch mode {
	case ModeCompact:
		budget, err := s.budget(answerPrompt, answerPromptData{Query: query})
		if err != nil {
			return "", err
		}
		packed, err := pack(texts, budget)
		if err != nil {
			return "", err
		}
		return s.refine(ctx, query, packed)
	case ModeRefine:
		return s.refine(ctx, query, texts)
	case ModeTreeSummarize:
		return s.treeSummarize(ctx, query, texts, 0)
	case ModeSimpleSummarize:
		return s.simpleSummarize(ctx, query, texts)
	case ModeAccumulate:
		return s.accumulate(ctx, query, texts)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownResponseMode, mode)
	}
}

// refine answers from the first piece and refines that answer with every following piece. Each
// piece is sized against a budget that includes the current answer.
func (s Synthesizer) refine(ctx context.Context, query string, texts []string) (string, error) {
	answer := ""
	for i, text := range texts {
		spans, err := internal.TokenSpans(text)
		if err != nil {
			return "", fmt.Errorf("failed to split part %d: %w", i, err)
		}

		for pos := 0; pos < spans.Len(); {
			name, templ := "answer", answerPrompt
			data := refinePromptData{Query: query, ExistingAnswer: answer}
			if answer != "" {
				name, templ = "refine", refinePrompt
			}

			budget, err := s.budget(templ, data)
			if err != nil {
				return "", err
			}
			end, _ := spans.Pack(pos, budget)
			data.Context = text[spans.Bounds[pos]:spans.Bounds[end]]
			pos = end

			prompt, err := promptTemplate(name, templ, data)
			if err != nil {
				return "", fmt.Errorf("failed to generate prompt: %w", err)
			}

			reply, err := s.LLM.Chat(ctx, []string{prompt})
			if err != nil {
				return "", fmt.Errorf("failed to answer with part %d: %w", i, err)
			}
			if refined := cleanAnswer(reply); refined != "" {
				answer = refined
			}
		}
	}

	return answer, nil
}

func (s Synthesizer) treeSummarize(ctx context.Context, query string, texts []string, depth int) (string, error) {
	budget, err := s.budget(summaryPrompt, answerPromptData{Query: query})
	if err != nil {
		return "", err
	}
	packed, err := pack(texts, budget)
	if err != nil {
		return "", err
	}

	if len(packed) == 1 {
		prompt, err := promptTemplate("summary", summaryPrompt, answerPromptData{Context: packed[0], Query: query})
		if err != nil {
			return "", fmt.Errorf("failed to generate summary prompt: %w", err)
		}
		reply, err := s.LLM.Chat(ctx, []string{prompt})
		if err != nil {
			return "", fmt.Errorf("failed to summarize: %w", err)
		}
		return cleanAnswer(reply), nil
	}

	if depth >= maxTreeDepth {
		return "", fmt.Errorf("summaries did not converge after %d levels", depth)
	}

	summaries, err := s.answerEach(ctx, "summary", summaryPrompt, query, packed)
	if err != nil {
		return "", err
	}
	if len(summaries) == 0 {
		return "", ErrEmptyAnswer
	}

	s.logger().Debug("Summarized level", "level", depth, "parts", len(packed), "summaries", len(summaries))

	return s.treeSummarize(ctx, query, summaries, depth+1)
}

func (s Synthesizer) simpleSummarize(ctx context.Context, query string, texts []string) (string, error) {
	budget, err := s.budget(answerPrompt, answerPromptData{Query: query})
	if err != nil {
		return "", err
	}
	joined, err := internal.TruncateTokens(strings.Join(texts, packSeparator), budget)
	if err != nil {
		return "", fmt.Errorf("failed to truncate context: %w", err)
	}

	prompt, err := promptTemplate("answer", answerPrompt, answerPromptData{Context: joined, Query: query})
	if err != nil {
		return "", fmt.Errorf("failed to generate prompt: %w", err)
	}
	reply, err := s.LLM.Chat(ctx, []string{prompt})
	if err != nil {
		return "", fmt.Errorf("failed to answer: %w", err)
	}

	return cleanAnswer(reply), nil
}

func (s Synthesizer) accumulate(ctx context.Context, query string, texts []string) (string, error) {
	budget, err := s.budget(answerPrompt, answerPromptData{Query: query})
	if err != nil {
		return "", err
	}
	packed, err := pack(texts, budget)
	if err != nil {
		return "", err
	}

	answers, err := s.answerEach(ctx, "answer", answerPrompt, query, packed)
	if err != nil {
		return "", err
	}

	return strings.Join(answers, accumulateSeparator), nil
}

// answerEach runs templ against every part concurrently and returns the non-empty replies in
// the order of parts.
func (s Synthesizer) answerEach(ctx context.Context, name, templ, query string, parts []string) ([]string, error) {
	replies := make([]string, len(parts))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(s.Concurrency, 1))

	for i, part := range parts {
		eg.Go(func() error {
			prompt, err := promptTemplate(name, templ, answerPromptData{Context: part, Query: query})
			if err != nil {
				return fmt.Errorf("failed to generate %s prompt: %w", name, err)
			}
			reply, err := s.LLM.Chat(ctx, []string{prompt})
			if err != nil {
				return fmt.Errorf("failed to %s part %d: %w", name, i, err)
			}
			replies[i] = cleanAnswer(reply)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res := make([]string, 0, len(replies))
	for _, reply := range replies {
		if reply != "" {
			res = append(res, reply)
		}
	}

	return res, nil
}

// budget returns the number of context tokens left once the prompt rendered from templ and
// data and the reserved output are subtracted from the context window.
func (s Synthesizer) budget(templ string, data any) (int, error) {
	prompt, err := promptTemplate("budget", templ, data)
	if err != nil {
		return 0, fmt.Errorf("failed to generate prompt: %w", err)
	}
	promptTokens, err := internal.CountTokens(prompt)
	if err != nil {
		return 0, fmt.Errorf("failed to count prompt tokens: %w", err)
	}

	contextWindow := s.ContextWindow
	if contextWindow <= 0 {
		contextWindow = defaultContextWindow
	}
	numOutput := s.NumOutput
	if numOutput <= 0 {
		numOutput = defaultNumOutput
	}

	budget := contextWindow - numOutput - promptTokens
	if budget <= 0 {
		return 0, fmt.Errorf("prompt of %d tokens leaves no room in a %d token context window",
			promptTokens, contextWindow)
	}

	return budget, nil
}

func (s Synthesizer) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

// pack merges consecutive texts into as few parts as fit budget tokens each, splitting any text
// that is larger than the budget on its own.
func pack(texts []string, budget int) ([]string, error) {
	separatorTokens, err := internal.CountTokens(packSeparator)
	if err != nil {
		return nil, fmt.Errorf("failed to count separator tokens: %w", err)
	}

	var packed []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) > 0 {
			packed = append(packed, strings.Join(current, packSeparator))
		}
		current, currentTokens = nil, 0
	}

	for _, text := range texts {
		tokens, err := internal.CountTokens(text)
		if err != nil {
			return nil, fmt.Errorf("failed to count tokens: %w", err)
		}

		if tokens > budget {
			flush()
			pieces, err := internal.SplitTokens(text, budget)
			if err != nil {
				return nil, fmt.Errorf("failed to split text: %w", err)
			}
			packed = append(packed, pieces...)
			continue
		}

		needed := tokens
		if len(current) > 0 {
			needed += separatorTokens
		}
		if currentTokens+needed > budget {
			flush()
			needed = tokens
		}
		current = append(current, text)
		currentTokens += needed
	}
	flush()

	return packed, nil
}
