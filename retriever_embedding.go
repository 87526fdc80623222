package docsum

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
)

// embeddingRetriever ranks chunks by similarity to the query in a throwaway in-memory
// chromem collection.
type embeddingRetriever struct {
	docID       string
	chunks      []Chunk
	embed       EmbeddingFunc
	topK        int
	concurrency int
}

func (e embeddingRetriever) Retrieve(ctx context.Context, query string) ([]ScoredChunk, error) {
	if len(e.chunks) == 0 {
		return nil, nil
	}

	db := chromem.NewDB()
	coll, err := db.CreateCollection("chunks", map[string]string{"document": e.docID}, chromem.EmbeddingFunc(e.embed))
	if err != nil {
		return nil, fmt.Errorf("failed to create chunks collection: %w", err)
	}

	byID := make(map[string]Chunk, len(e.chunks))
	docs := make([]chromem.Document, len(e.chunks))
	for i, chunk := range e.chunks {
		byID[chunk.ID] = chunk
		docs[i] = chromem.Document{
			ID:      chunk.ID,
			Content: chunk.Content,
			Metadata: map[string]string{
				"order": strconv.Itoa(chunk.OrderIndex),
			},
		}
	}

	if err := coll.AddDocuments(ctx, docs, e.concurrency); err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	vecRes, err := coll.Query(ctx, query, min(e.topK, coll.Count()), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}

	res := make([]ScoredChunk, 0, len(vecRes))
	for _, vec := range vecRes {
		chunk, ok := byID[vec.ID]
		if !ok {
			continue
		}
		res = append(res, ScoredChunk{Chunk: chunk, Score: float64(vec.Similarity)})
	}

	sort.SliceStable(res, func(i, j int) bool {
		return res[i].OrderIndex < res[j].OrderIndex
	})

	return res, nil
}
