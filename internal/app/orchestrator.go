package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bulletin-scraper/internal/browser"
	"bulletin-scraper/internal/checksum"
	"bulletin-scraper/internal/config"
	"bulletin-scraper/internal/document"
	"bulletin-scraper/internal/fetcher"
	"bulletin-scraper/internal/manifest"
	"bulletin-scraper/internal/observability"
	"bulletin-scraper/internal/scraper"
)

// SourceFactory opens the document source for one run.
type SourceFactory func(ctx context.Context) (document.Source, error)

// NewSourceFactory picks the source named by cfg.Source.Kind.
func NewSourceFactory(cfg *config.Config, logger *observability.Logger) SourceFactory {
	return func(ctx context.Context) (document.Source, error) {
		switch cfg.Source.Kind {
		case config.SourceRod:
			return browser.Launch(ctx, cfg, logger)
		case config.SourceHTTP:
			return fetcher.NewFetcher(cfg, logger), nil
		case config.SourceFile:
			return document.NewFileSource(), nil
		default:
			return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
		}
	}
}

type Orchestrator struct {
	cfg       *config.Config
	logger    *observability.Logger
	open      SourceFactory
	extractor *scraper.Extractor
	sinks     []manifest.Sink
	checksum  *checksum.Generator
}

func NewOrchestrator(
	cfg *config.Config,
	logger *observability.Logger,
	open SourceFactory,
	sinks ...manifest.Sink,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		logger:    logger,
		open:      open,
		extractor: scraper.NewExtractor(cfg.Selectors, logger),
		sinks:     sinks,
		checksum:  checksum.NewGenerator(),
	}
}

type RunStats struct {
	URL           string
	Sections      int
	Links         int
	EmptySections int
	Untitled      int
	Bytes         int
	Checksum      string
	Duration      time.Duration
}

// Run loads url, extracts its sections and delivers the manifest to every
// sink. Nothing reaches a sink unless extraction succeeded; the source is
// closed on every path.
func (o *Orchestrator) Run(ctx context.Context, url string) (stats *RunStats, err error) {
	start := time.Now()

	o.logger.Info("Starting extraction",
		"url", url,
		"source", o.cfg.Source.Kind,
	)

	src, err := o.open(ctx)
	if err != nil {
		return nil, &document.FetchError{URL: url, Err: err}
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			o.logger.Warn("Failed to release document source", "error", closeErr)
			if err == nil {
				err = fmt.Errorf("release document source: %w", closeErr)
			}
		}
	}()

	doc, err := src.Load(ctx, url)
	if err != nil {
		o.logger.Error("Load failed", "url", url, "error", err)
		return nil, err
	}

	sections, err := o.extractor.Extract(doc)
	if err != nil {
		o.logger.Error("Extraction failed", "url", url, "error", err)
		return nil, err
	}

	data := manifest.Format(sections)
	if err := manifest.Write(data, o.sinks...); err != nil {
		o.logger.Error("Manifest write failed", "error", err)
		return nil, err
	}

	summary := scraper.Summarize(sections, o.cfg.Selectors.FallbackLabel)
	stats = &RunStats{
		URL:           doc.URL(),
		Sections:      summary.Sections,
		Links:         summary.Links,
		EmptySections: summary.EmptySections,
		Untitled:      summary.Untitled,
		Bytes:         len(data),
		Checksum:      o.checksum.ManifestHash(data),
		Duration:      time.Since(start),
	}

	o.logger.Info("Extraction completed",
		"url", stats.URL,
		"sections", stats.Sections,
		"links", stats.Links,
		"empty_sections", stats.EmptySections,
		"untitled_sections", stats.Untitled,
		"bytes", stats.Bytes,
		"sha256", stats.Checksum,
		"duration", stats.Duration.String(),
	)

	return stats, nil
}

// ExitCode maps a run error to a process exit status.
func ExitCode(err error) int {
	var (
		fetchErr     *document.FetchError
		structureErr *scraper.StructureError
	)
	switch {
	case err == nil:
		return 0
	case errors.As(err, &fetchErr):
		return 3
	case errors.As(err, &structureErr):
		return 4
	default:
		return 1
	}
}
