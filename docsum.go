package docsum

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

// LLM defines the interface for language model operations used while indexing and answering.
type LLM interface {
	// Chat sends messages to the LLM and returns the response.
	// A message with an even index is guaranteed to be sent by the user, while the odd index is
	// sent by the assistant.
	// Implementations must stop and return the context error once ctx is done.
	Chat(ctx context.Context, messages []string) (string, error)
}

// EmbeddingFunc turns a text into its vector representation. It is only required by the
// embedding retrieval strategy.
type EmbeddingFunc func(ctx context.Context, text string) ([]float32, error)

// Index is the opaque, request-scoped result of the indexing stage.
type Index interface {
	// DocumentID returns the ID of the indexed document.
	DocumentID() string
	// Chunks returns the indexed chunks in document order.
	Chunks() []Chunk
}

// Document represents a text document to be summarized.
// It contains an ID for unique identification and the content to be analyzed.
type Document struct {
	ID      string
	Content string
}

// Chunk represents a contiguous piece of a document with positional metadata.
// Start and End are byte offsets into the cleaned document content, Size is the length of the
// chunk in the unit the DocumentHandler counts in.
type Chunk struct {
	ID         string
	Content    string
	Size       int
	OrderIndex int
	Start      int
	End        int
}

// ScoredChunk is a chunk selected by a Retriever together with its relevance score.
type ScoredChunk struct {
	Chunk
	Score float64
}

var thinkTags = regexp.MustCompile(`(?s)<think>.*?</think>`)

func cleanContent(content string) string {
	// Removes null characters and invalid UTF-8 only, whitespace belongs to the chunks.
	return strings.ToValidUTF8(strings.ReplaceAll(content, "\x00", ""), "")
}

func cleanAnswer(answer string) string {
	return strings.TrimSpace(thinkTags.ReplaceAllString(answer, ""))
}

func promptTemplate(name, templ string, data any) (string, error) {
	buf := strings.Builder{}
	tmpl := template.New(name).Funcs(template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
	})
	tmpl = template.Must(tmpl.Parse(templ))
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

func removeMarkdownBackticks(input string) string {
	lines := strings.Split(input, "\n")

	filteredLines := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "```") {
			filteredLines = append(filteredLines, line)
		}
	}

	return strings.Join(filteredLines, "\n")
}

func (c Chunk) genID(docID string) string {
	return fmt.Sprintf("%s-chunk-%d", docID, c.OrderIndex)
}
