package media

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	frontpage "github.com/eugener/frontpage/internal"
)

const defaultLimit = 20

// Aggregator merges the activity of several sources.
type Aggregator struct {
	sources []Source
	limit   int
}

// NewAggregator returns an Aggregator over sources. limit <= 0 uses 20.
func NewAggregator(limit int, sources ...Source) *Aggregator {
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Aggregator{sources: sources, limit: limit}
}

// Sources returns the configured sources in order.
func (a *Aggregator) Sources() []Source { return a.sources }

// Activity fetches one source, logging and swallowing its failure.
func (a *Aggregator) Activity(ctx context.Context, src Source) []frontpage.Activity {
	items, err := src.Activity(ctx)
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelWarn, "media source failed",
			slog.String("source", src.Name()),
			slog.String("error", err.Error()),
		)
		return []frontpage.Activity{}
	}
	if items == nil {
		items = []frontpage.Activity{}
	}
	return items
}

// Combined fetches all sources in parallel. A failing source contributes
// nothing. Items are deduplicated by id, newest first, truncated to the limit.
func (a *Aggregator) Combined(ctx context.Context) []frontpage.Activity {
	parts := make([][]frontpage.Activity, len(a.sources))
	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() error {
			parts[i] = a.Activity(ctx, src)
			return nil
		})
	}
	g.Wait()

	seen := make(map[string]struct{})
	out := []frontpage.Activity{}
	for _, items := range parts {
		for _, it := range items {
			if it.ID == "" {
				continue
			}
			if _, dup := seen[it.ID]; dup {
				continue
			}
			seen[it.ID] = struct{}{}
			out = append(out, it)
		}
	}
	slices.SortStableFunc(out, func(x, y frontpage.Activity) int {
		return cmp.Compare(y.Timestamp, x.Timestamp)
	})
	if len(out) > a.limit {
		out = out[:a.limit]
	}
	return out
}
