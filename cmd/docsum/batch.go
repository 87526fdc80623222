package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	docsum "github.com/MegaGrindStone/go-docsum"
	"github.com/MegaGrindStone/go-docsum/config"
	"github.com/MegaGrindStone/go-docsum/loader"
	"github.com/MegaGrindStone/go-docsum/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

func runBatch(
	ctx context.Context,
	cfg config.Config,
	summarizer docsum.Summarizer,
	ld loader.Loader,
	dir, query string,
	resume bool,
	logger *slog.Logger,
) error {
	journal, err := newJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("error opening journal: %w", err)
	}
	if journal != nil {
		defer journal.Close()
	}

	files, err := loader.Walk(dir)
	if err != nil {
		return err
	}

	logger = logger.With(slog.String("run", uuid.NewString()))
	logger.Info("Found files", "count", len(files))

	settings := journalSettings(cfg, summarizer)

	var failed, skipped atomic.Int64

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(cfg.BatchConcurrency, 1))

	for _, path := range files {
		eg.Go(func() error {
			ok, err := processFile(ctx, summarizer, ld, journal, settings, path, dir, query, resume, logger)
			if err != nil {
				return err
			}
			switch {
			case ok == fileSkipped:
				skipped.Add(1)
			case ok == fileFailed:
				failed.Add(1)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}

	logger.Info("Batch done", "files", len(files), "skipped", skipped.Load(), "failed", failed.Load())
	if failed.Load() > 0 {
		return fmt.Errorf("%d of %d documents failed", failed.Load(), len(files))
	}

	return nil
}

// journalSettings collects the settings that a recorded answer depends on.
func journalSettings(cfg config.Config, summarizer docsum.Summarizer) storage.Settings {
	return storage.Settings{
		Policy:       summarizer.Policy.WithDefaults(),
		Strategy:     summarizer.Strategy,
		Chunker:      cfg.Chunker,
		Unit:         cfg.ChunkUnit,
		ResponseMode: cfg.ResponseMode,
		Provider:     cfg.LLM.Provider,
		Model:        cfg.LLM.Model,
	}
}

type fileOutcome int

const (
	fileDone fileOutcome = iota
	fileSkipped
	fileFailed
)

// processFile summarizes one document. Summarization failures are recorded and reported as
// fileFailed, only journal errors abort the batch.
func processFile(
	ctx context.Context,
	summarizer docsum.Summarizer,
	ld loader.Loader,
	journal storage.Journal,
	settings storage.Settings,
	path, root, query string,
	resume bool,
	logger *slog.Logger,
) (fileOutcome, error) {
	relPath, err := filepath.Rel(root, path)
	if err != nil {
		relPath = path
	}
	logger = logger.With(slog.String("path", relPath))

	doc, err := ld.Load(path)
	if err != nil {
		logger.Warn("Error loading document", "error", err)
		return fileFailed, nil
	}

	fingerprint := storage.Fingerprint(doc.Content, query, settings)

	if journal != nil && resume {
		entry, err := journal.Lookup(ctx, fingerprint)
		switch {
		case err == nil && entry.Succeeded():
			logger.Debug("Answer already recorded, skipping")
			return fileSkipped, nil
		case err != nil && !errors.Is(err, storage.ErrEntryNotFound):
			return fileFailed, fmt.Errorf("error reading journal: %w", err)
		}
	}

	logger.Info("Summarizing document")

	answer, err := summarizer.Summarize(ctx, docsum.Request{
		Document: doc.Content,
		Query:    query,
	})

	entry := storage.Entry{
		Fingerprint: fingerprint,
		Path:        relPath,
		Query:       query,
		Answer:      answer.Answer,
		CreatedAt:   time.Now(),
	}
	outcome := fileDone
	if err != nil {
		logger.Warn("Error summarizing document", "error", err)
		entry.Err = err.Error()
		outcome = fileFailed
	} else {
		fmt.Printf("== %s\n%s\n\n", relPath, answer.Answer)
	}

	if journal != nil {
		if err := journal.Record(ctx, entry); err != nil {
			return fileFailed, fmt.Errorf("error recording journal entry: %w", err)
		}
	}

	return outcome, nil
}
