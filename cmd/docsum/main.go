package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	docsum "github.com/MegaGrindStone/go-docsum"
	"github.com/MegaGrindStone/go-docsum/config"
	"github.com/MegaGrindStone/go-docsum/loader"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or TOML config file")
	documentPath := flag.String("document", "", "document to summarize")
	query := flag.String("query", "", "query to answer from the document")
	dir := flag.String("dir", "", "summarize every supported document under this directory")
	resume := flag.Bool("resume", false, "skip documents whose answer is already in the journal")
	describe := flag.Bool("describe", false, "print the component descriptor and exit")
	flag.Parse()

	if *describe {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(docsum.Describe()); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding descriptor: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summarizer, err := newSummarizer(cfg, logger)
	if err != nil {
		logger.Error("Error creating summarizer", "error", err)
		os.Exit(1)
	}

	ld := loader.Loader{StripMarkdown: cfg.StripMarkdown}

	switch {
	case *dir != "":
		if err := runBatch(ctx, cfg, summarizer, ld, *dir, *query, *resume, logger); err != nil {
			logger.Error("Batch run failed", "error", err)
			os.Exit(1)
		}
	case *documentPath != "":
		if err := runSingle(ctx, summarizer, ld, *documentPath, *query); err != nil {
			logger.Error("Summarize failed", "error", err)
			os.Exit(exitCode(err))
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runSingle(ctx context.Context, summarizer docsum.Summarizer, ld loader.Loader, path, query string) error {
	doc, err := ld.Load(path)
	if err != nil {
		return err
	}

	answer, err := summarizer.Summarize(ctx, docsum.Request{
		Document: doc.Content,
		Query:    query,
	})
	if err != nil {
		return err
	}

	fmt.Println(answer.Answer)
	return nil
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, docsum.ErrInvalidInput):
		return 2
	case errors.Is(err, docsum.ErrIndexConstruction):
		return 3
	case errors.Is(err, docsum.ErrQueryExecution):
		return 4
	default:
		return 1
	}
}
