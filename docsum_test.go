package docsum_test

import (
	"context"
	"strings"
	"sync"

	docsum "github.com/MegaGrindStone/go-docsum"
)

type MockLLM struct {
	// respond produces the reply to a prompt. When nil, chatResponse is returned.
	respond      func(prompt string) (string, error)
	chatResponse string
	chatErr      error

	// For tracking interactions
	mu        sync.Mutex
	chatCalls [][]string
}

type MockBackend struct {
	index    docsum.Index
	indexErr error
	answer   string
	queryErr error

	// ignoreCtx makes BuildIndex block until release is closed, whatever ctx says.
	ignoreCtx bool
	// waitQuery makes Query block until ctx is done.
	waitQuery bool
	release   chan struct{}

	mu              sync.Mutex
	buildIndexCalls int
	queryCalls      int
	lastPolicy      docsum.ChunkingPolicy
	lastStrategy    docsum.RetrievalStrategy
}

type MockIndex struct {
	chunks []docsum.Chunk
}

func (m *MockLLM) Chat(ctx context.Context, messages []string) (string, error) {
	m.mu.Lock()
	m.chatCalls = append(m.chatCalls, messages)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.chatErr != nil {
		return "", m.chatErr
	}
	if m.respond != nil {
		return m.respond(messages[len(messages)-1])
	}
	return m.chatResponse, nil
}

func (m *MockLLM) calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([][]string, len(m.chatCalls))
	copy(res, m.chatCalls)
	return res
}

func (m *MockBackend) BuildIndex(ctx context.Context, _ string, policy docsum.ChunkingPolicy) (docsum.Index, error) {
	m.mu.Lock()
	m.buildIndexCalls++
	m.lastPolicy = policy
	m.mu.Unlock()

	if m.ignoreCtx {
		<-m.release
	}
	if m.indexErr != nil {
		return nil, m.indexErr
	}
	return m.index, nil
}

func (m *MockBackend) Query(
	ctx context.Context,
	_ docsum.Index,
	_ string,
	strategy docsum.RetrievalStrategy,
) (string, error) {
	m.mu.Lock()
	m.queryCalls++
	m.lastStrategy = strategy
	m.mu.Unlock()

	if m.waitQuery {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.queryErr != nil {
		return "", m.queryErr
	}
	return m.answer, nil
}

func (m MockIndex) DocumentID() string {
	return "mock-doc"
}

func (m MockIndex) Chunks() []docsum.Chunk {
	return m.chunks
}

// isChoicePrompt reports whether prompt asks the LLM to select chunks.
func isChoicePrompt(prompt string) bool {
	return strings.Contains(prompt, "---Excerpts---")
}

func scoredChunks(contents ...string) []docsum.ScoredChunk {
	res := make([]docsum.ScoredChunk, len(contents))
	for i, content := range contents {
		res[i] = docsum.ScoredChunk{
			Chunk: docsum.Chunk{
				ID:         "doc-chunk-" + string(rune('0'+i)),
				Content:    content,
				OrderIndex: i,
			},
			Score: 1,
		}
	}
	return res
}
