package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	docsum "github.com/MegaGrindStone/go-docsum"
	"github.com/cespare/xxhash"
)

// Journal records the outcome of batch summarization runs. It stores answers only, indexes are
// never persisted.
type Journal interface {
	Record(ctx context.Context, entry Entry) error
	Lookup(ctx context.Context, fingerprint string) (Entry, error)
	Close() error
}

// Entry is one recorded summarization outcome.
type Entry struct {
	Fingerprint string    `json:"fingerprint"`
	Path        string    `json:"path"`
	Query       string    `json:"query"`
	Answer      string    `json:"answer,omitempty"`
	Err         string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ErrEntryNotFound is returned when a journal holds no entry for a fingerprint.
var ErrEntryNotFound = errors.New("journal entry not found")

// Succeeded reports whether the entry holds an answer.
func (e Entry) Succeeded() bool {
	return e.Err == "" && e.Answer != ""
}

// Settings are the configuration values that change the answer to a request.
type Settings struct {
	Policy       docsum.ChunkingPolicy
	Strategy     docsum.RetrievalStrategy
	Chunker      string
	Unit         string
	ResponseMode string
	Provider     string
	Model        string
}

// Fingerprint identifies a request together with the settings that produce its answer, so a
// changed document, query, or any field of settings yields a new fingerprint.
func Fingerprint(document, query string, settings Settings) string {
	h := xxhash.New()
	for _, part := range []string{
		document,
		query,
		strconv.Itoa(settings.Policy.ChunkSize),
		strconv.Itoa(settings.Policy.ChunkOverlap),
		string(settings.Strategy),
		settings.Chunker,
		settings.Unit,
		settings.ResponseMode,
		settings.Provider,
		settings.Model,
	} {
		_, _ = h.Write([]byte(part))
		_, _ = h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

func encodeEntry(entry Entry) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry: %w", err)
	}
	return data, nil
}

func decodeEntry(data []byte) (Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return entry, nil
}
