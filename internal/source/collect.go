package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"content_syncer/internal/retry"
)

// CollectConfig bounds one provider's request behaviour.
type CollectConfig struct {
	Retry retry.Config

	// MinRequestInterval is the minimum delay between successive page
	// fetches. Zero disables pacing.
	MinRequestInterval time.Duration

	// MaxConcurrent caps in-flight requests against the provider.
	MaxConcurrent int

	// MaxPages bounds one collection run. Zero or negative means no limit.
	MaxPages int
}

// Collector drives a Source through all of its pages, applying retry,
// request pacing and a concurrency cap around every page fetch. One
// Collector is built per source and shared by all of that source's runs.
type Collector struct {
	src      Source
	executor *retry.Executor
	limiter  *rate.Limiter
	sem      chan struct{}
	maxPages int
	logger   *slog.Logger
}

func NewCollector(src Source, cfg CollectConfig, logger *slog.Logger) *Collector {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	// rate.Every returns Inf for a non-positive interval, which disables
	// pacing without a special case here.
	return &Collector{
		src:      src,
		executor: retry.New(cfg.Retry, logger),
		limiter:  rate.NewLimiter(rate.Every(cfg.MinRequestInterval), 1),
		sem:      make(chan struct{}, maxConcurrent),
		maxPages: cfg.MaxPages,
		logger:   logger,
	}
}

func (c *Collector) ID() string   { return c.src.ID() }
func (c *Collector) Name() string { return c.src.Name() }

// Fetch walks the source page by page until the provider reports no further
// cursor, a page comes back empty, or the page limit is reached. Each page
// fetch is retried independently; pages already consumed are never refetched.
func (c *Collector) Fetch(ctx context.Context) (Result, error) {
	var result Result

	cursor := ""
	for pageNum := 1; c.maxPages <= 0 || pageNum <= c.maxPages; pageNum++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("wait for request slot: %w", err)
		}

		var page Page
		err := c.executor.Do(ctx, func(ctx context.Context) error {
			if err := c.acquire(ctx); err != nil {
				return err
			}
			defer c.release()

			var fetchErr error
			page, fetchErr = c.src.FetchPage(ctx, cursor)
			return fetchErr
		})
		if err != nil {
			return result, fmt.Errorf("fetch page %d from %s: %w", pageNum, c.src.ID(), err)
		}

		result.Records = append(result.Records, page.Items...)
		result.Skipped += page.Skipped
		result.Pages++

		c.logger.Debug("fetched page",
			"source", c.src.ID(),
			"page", pageNum,
			"items", len(page.Items),
			"skipped", page.Skipped)

		if page.NextCursor == "" || len(page.Items) == 0 {
			break
		}
		cursor = page.NextCursor
	}

	return result, nil
}

func (c *Collector) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Collector) release() {
	<-c.sem
}
