package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/salesrank-backend/pkg/logger"
	"github.com/angelmondragon/salesrank-backend/pkg/metrics"
)

const maxSummaryErrors = 10

// Resolution is the per-article outcome of a batch resolve. Exactly one of
// Image and Err is set.
type Resolution struct {
	ArticleID string
	Key       string
	Image     *ResolvedImage
	Err       error
}

// OK reports whether the article received an image URL.
func (r Resolution) OK() bool {
	return r.Err == nil && r.Image != nil
}

// EnricherParams wires an Enricher.
type EnricherParams struct {
	Keys           KeyScheme
	Locator        Locator
	TTL            time.Duration
	MaxConcurrency int
	Logger         *logger.Logger
	Metrics        *metrics.PipelineMetrics
}

// Enricher resolves image URLs for batches of articles concurrently.
type Enricher struct {
	keys           KeyScheme
	locator        Locator
	ttl            time.Duration
	maxConcurrency int
	logg           *logger.Logger
	metrics        *metrics.PipelineMetrics
}

func NewEnricher(p EnricherParams) (*Enricher, error) {
	if p.Locator == nil {
		return nil, errors.New("locator required")
	}
	return &Enricher{
		keys:           p.Keys,
		locator:        p.Locator,
		ttl:            p.TTL,
		maxConcurrency: p.MaxConcurrency,
		logg:           p.Logger,
		metrics:        p.Metrics,
	}, nil
}

// ResolveAll resolves every id concurrently and returns one Resolution per id
// in input order. Per-item failures are logged and reported in the result;
// they never fail the batch. MaxConcurrency <= 0 leaves the fan-out unbounded.
func (e *Enricher) ResolveAll(ctx context.Context, ids []string) []Resolution {
	results := make([]Resolution, len(ids))
	if len(ids) == 0 {
		return results
	}

	var g errgroup.Group
	if e.maxConcurrency > 0 {
		g.SetLimit(e.maxConcurrency)
	}
	for i, id := range ids {
		g.Go(func() error {
			results[i] = e.resolveOne(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	e.logSummary(ctx, results)
	return results
}

func (e *Enricher) resolveOne(ctx context.Context, id string) Resolution {
	start := time.Now()
	res := Resolution{ArticleID: id}

	key, err := e.keys.Derive(id)
	if err != nil {
		res.Err = err
		e.record(ctx, res, time.Since(start))
		return res
	}
	res.Key = key

	img, err := e.locator.Resolve(ctx, key, e.ttl)
	if err != nil {
		res.Err = err
	} else {
		res.Image = &img
	}
	e.record(ctx, res, time.Since(start))
	return res
}

func (e *Enricher) record(ctx context.Context, res Resolution, elapsed time.Duration) {
	strategy := e.locator.Strategy().String()
	e.metrics.ObserveResolution(strategy, res.OK(), elapsed)

	if res.OK() || e.logg == nil {
		return
	}
	ctx = e.logg.WithFields(e.logg.WithArticleID(ctx, res.ArticleID), map[string]any{
		"key":      res.Key,
		"strategy": strategy,
		"error":    res.Err.Error(),
	})
	e.logg.Warn(ctx, "media.resolve.failed")
}

func (e *Enricher) logSummary(ctx context.Context, results []Resolution) {
	if e.logg == nil {
		return
	}

	var combined error
	failed := 0
	for _, res := range results {
		if res.OK() {
			continue
		}
		failed++
		if failed <= maxSummaryErrors {
			combined = multierr.Append(combined, fmt.Errorf("article %s: %w", res.ArticleID, res.Err))
		}
	}
	if failed == 0 {
		return
	}

	ctx = e.logg.WithFields(ctx, map[string]any{
		"failed":   failed,
		"total":    len(results),
		"strategy": e.locator.Strategy().String(),
		"errors":   combined.Error(),
	})
	e.logg.Warn(ctx, "media.resolve.partial")
}
