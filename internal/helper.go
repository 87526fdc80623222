package internal

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

var gpt4oCodec = sync.OnceValues(func() (tokenizer.Codec, error) {
	return tokenizer.ForModel(tokenizer.GPT4o)
})

// EncodeStringByTiktoken encodes a string into token IDs using the GPT-4o tokenizer.
// It returns a slice of token IDs and an error if tokenization fails.
func EncodeStringByTiktoken(content string) ([]uint, error) {
	enc, err := gpt4oCodec()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer: %w", err)
	}

	ids, _, err := enc.Encode(content)
	if err != nil {
		return nil, fmt.Errorf("failed to encode string: %w", err)
	}

	return ids, nil
}

// DecodeTokensByTiktoken decodes token IDs back into a string using the GPT-4o tokenizer.
// It takes a slice of token IDs and returns the decoded string and an error if decoding fails.
func DecodeTokensByTiktoken(tokenIDs []uint) (string, error) {
	enc, err := gpt4oCodec()
	if err != nil {
		return "", fmt.Errorf("failed to get tokenizer: %w", err)
	}

	return enc.Decode(tokenIDs)
}

// CountTokens counts the number of tokens in a string using the GPT-4o tokenizer.
// It takes a string input and returns the token count and an error if tokenization fails.
func CountTokens(content string) (int, error) {
	tokenIDs, err := EncodeStringByTiktoken(content)
	if err != nil {
		return 0, fmt.Errorf("failed to encode string: %w", err)
	}
	return len(tokenIDs), nil
}

// Spans describes content as a sequence of indivisible pieces. Piece i covers
// content[Bounds[i]:Bounds[i+1]] and counts as Weights[i] units.
type Spans struct {
	Bounds  []int
	Weights []int
}

// Len returns the number of pieces.
func (s Spans) Len() int {
	return len(s.Weights)
}

// Pack returns the end of the longest run of pieces from start whose weights sum to at most
// limit, together with that sum. The run holds at least one piece, so a single piece heavier
// than limit is returned on its own.
func (s Spans) Pack(start, limit int) (int, int) {
	end, size := start, 0
	for end < s.Len() && (end == start || size+s.Weights[end] <= limit) {
		size += s.Weights[end]
		end++
	}
	return end, size
}

// Rewind returns where the run after [start, end) begins so that the two runs share at most
// overlap units. The result is always past start.
func (s Spans) Rewind(start, end, overlap int) int {
	next, shared := end, 0
	for next > start+1 && shared+s.Weights[next-1] <= overlap {
		shared += s.Weights[next-1]
		next--
	}
	return next
}

// TokenSpans splits content at its GPT-4o token boundaries. Tokens that only decode to valid
// text together, such as the pieces of a multi-byte rune, form one piece weighted by the
// number of tokens in it, so the weights always add up to the token count of content.
func TokenSpans(content string) (Spans, error) {
	tokenIDs, err := EncodeStringByTiktoken(content)
	if err != nil {
		return Spans{}, err
	}

	spans := Spans{
		Bounds:  make([]int, 0, len(tokenIDs)+1),
		Weights: make([]int, 0, len(tokenIDs)),
	}
	offset := 0
	for i := 0; i < len(tokenIDs); {
		j, piece, err := decodeGroup(content[offset:], tokenIDs[i:])
		if err != nil {
			return Spans{}, fmt.Errorf("failed to decode token %d: %w", i, err)
		}
		spans.Bounds = append(spans.Bounds, offset)
		spans.Weights = append(spans.Weights, j)
		offset += len(piece)
		i += j
	}
	if offset != len(content) {
		return Spans{}, fmt.Errorf("token pieces cover %d bytes, content has %d", offset, len(content))
	}
	spans.Bounds = append(spans.Bounds, offset)

	return spans, nil
}

// decodeGroup decodes the shortest leading run of tokenIDs that yields a prefix of rest and
// returns the length of that run with the decoded text.
func decodeGroup(rest string, tokenIDs []uint) (int, string, error) {
	for j := 1; j <= len(tokenIDs); j++ {
		piece, err := DecodeTokensByTiktoken(tokenIDs[:j])
		if err != nil {
			return 0, "", err
		}
		if piece != "" && utf8.ValidString(piece) && strings.HasPrefix(rest, piece) {
			return j, piece, nil
		}
	}
	return 0, "", fmt.Errorf("tokens do not decode to the content")
}

// RuneSpans splits content into its runes, each weighing one unit.
func RuneSpans(content string) Spans {
	n := utf8.RuneCountInString(content)
	spans := Spans{
		Bounds:  make([]int, 0, n+1),
		Weights: make([]int, 0, n),
	}
	for i := range content {
		spans.Bounds = append(spans.Bounds, i)
		spans.Weights = append(spans.Weights, 1)
	}
	spans.Bounds = append(spans.Bounds, len(content))
	return spans
}

// TruncateTokens returns the longest prefix of content that has at most maxTokens tokens.
func TruncateTokens(content string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		return "", nil
	}

	tokenIDs, err := EncodeStringByTiktoken(content)
	if err != nil {
		return "", err
	}
	if len(tokenIDs) <= maxTokens {
		return content, nil
	}

	return DecodeTokensByTiktoken(tokenIDs[:maxTokens])
}

// SplitTokens splits content into consecutive pieces of at most maxTokens tokens each. A rune
// spread over several tokens is never split, so it may form an oversized piece only when its
// tokens alone exceed maxTokens.
func SplitTokens(content string, maxTokens int) ([]string, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("invalid token limit %d", maxTokens)
	}

	spans, err := TokenSpans(content)
	if err != nil {
		return nil, err
	}

	var pieces []string
	for start := 0; start < spans.Len(); {
		end, _ := spans.Pack(start, maxTokens)
		pieces = append(pieces, content[spans.Bounds[start]:spans.Bounds[end]])
		start = end
	}

	return pieces, nil
}
