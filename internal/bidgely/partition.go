package bidgely

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jgoulah/bidgely/pkg/models"
)

// dayWindowSpan is how many days one DAY-aggregate call covers
const dayWindowSpan = 30

// Window is one sub-range issued as a single fetch
type Window struct {
	Start time.Time
	End   time.Time
}

// Windows splits [start, end) into the sub-ranges GetUsageData requests.
// MONTH is a single window. DAY is one window per whole 30 days and HOUR one
// window per whole day; the trailing remainder is dropped unless
// includePartial is set. Day arithmetic follows the wall clock of start's
// location, so DST transitions do not shift windows.
func Windows(agg models.AggregateType, start, end time.Time, includePartial bool) []Window {
	var step int
	switch agg {
	case models.Month:
		return []Window{{Start: start, End: end}}
	case models.Day:
		step = dayWindowSpan
	case models.Hour:
		step = 1
	default:
		return nil
	}

	n := wholeDays(start, end) / step
	windows := make([]Window, 0, n+1)
	for k := 0; k < n; k++ {
		windows = append(windows, Window{
			Start: start.AddDate(0, 0, k*step),
			End:   start.AddDate(0, 0, (k+1)*step),
		})
	}

	if includePartial {
		last := start.AddDate(0, 0, n*step)
		if end.After(last) {
			windows = append(windows, Window{Start: last, End: end})
		}
	}
	return windows
}

// wholeDays counts complete calendar days between start and end on start's
// wall clock
func wholeDays(start, end time.Time) int {
	end = end.In(start.Location())
	if !end.After(start) {
		return 0
	}
	s := time.Date(start.Year(), start.Month(), start.Day(), start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), end.Hour(), end.Minute(), end.Second(), end.Nanosecond(), time.UTC)
	return int(e.Sub(s) / (24 * time.Hour))
}

// GetUsageData returns reads for [start, end) at the requested aggregate.
// MONTH is one call. DAY and HOUR ranges are split by Windows and fetched
// concurrently; results are concatenated in window order. The first failing
// window cancels the rest and its error is returned with no partial data.
func (c *Client) GetUsageData(ctx context.Context, measurement models.MeasurementType, agg models.AggregateType, start, end time.Time, skipItemization bool) ([]models.CostRead, error) {
	if err := c.requireLogin(); err != nil {
		return nil, err
	}
	if _, err := modeFor(agg); err != nil {
		return nil, err
	}

	if agg == models.Month {
		return c.Fetch(ctx, measurement, agg, start, end, skipItemization)
	}

	windows := Windows(agg, start, end, c.includePartialWindow)
	c.logger.Debug().
		Str("aggregate", string(agg)).
		Int("windows", len(windows)).
		Time("start", start).
		Time("end", end).
		Msg("fetching partitioned range")

	results := make([][]models.CostRead, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	if c.maxConcurrency > 0 {
		g.SetLimit(c.maxConcurrency)
	}
	for i, w := range windows {
		g.Go(func() error {
			c.metrics.WindowStarted()
			defer c.metrics.WindowDone()

			reads, err := c.Fetch(gctx, measurement, agg, w.Start, w.End, skipItemization)
			if err != nil {
				return fmt.Errorf("window %s to %s: %w", w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly), err)
			}
			results[i] = reads
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	reads := make([]models.CostRead, 0, total)
	for _, r := range results {
		reads = append(reads, r...)
	}
	return reads, nil
}

// GetBreakdown returns monthly electric reads with itemization for [start, end)
func (c *Client) GetBreakdown(ctx context.Context, start, end time.Time) ([]models.CostRead, error) {
	return c.GetUsageData(ctx, models.Electric, models.Month, start, end, false)
}
