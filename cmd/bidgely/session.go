package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jgoulah/bidgely/internal/apierrors"
	"github.com/jgoulah/bidgely/internal/bidgely"
	"github.com/jgoulah/bidgely/internal/utility"
)

// withReauth logs in if needed and runs call, logging in again and retrying
// once when the service rejects the bearer token
func withReauth[T any](ctx context.Context, c *bidgely.Client, call func() (T, error)) (T, error) {
	var zero T
	if !c.LoggedIn() {
		if err := c.Login(ctx); err != nil {
			return zero, err
		}
	}

	result, err := call()
	if !errors.Is(err, apierrors.ErrInvalidAuth) {
		return result, err
	}

	logger.Warn().Err(err).Msg("session rejected, logging in again")
	if loginErr := c.Login(ctx); loginErr != nil {
		return zero, fmt.Errorf("refreshing session: %w (original error: %v)", loginErr, err)
	}
	return call()
}

// parseDate parses a date string in either YYYY-MM-DD format or relative format (e.g., "7d")
func parseDate(dateStr string, loc *time.Location) (time.Time, error) {
	// Try absolute date format first
	t, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err == nil {
		return t, nil
	}

	// Try relative format (e.g., "7d" for 7 days ago)
	if days, ok := strings.CutSuffix(dateStr, "d"); ok {
		var n int
		if _, err := fmt.Sscanf(days, "%d", &n); err == nil && n >= 0 {
			now := time.Now().In(loc)
			midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
			return midnight.AddDate(0, 0, -n), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format: %s (use YYYY-MM-DD or Nd for N days ago)", dateStr)
}

// dateRange resolves --since/--until flags, falling back to the given
// defaults when a flag is empty
func dateRange(c *bidgely.Client, since, until string, defaultStart, defaultEnd time.Time) (time.Time, time.Time, error) {
	loc, err := utility.Location(c.Utility())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	start, end := defaultStart.In(loc), defaultEnd.In(loc)
	if since != "" {
		if start, err = parseDate(since, loc); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing --since date: %w", err)
		}
	}
	if until != "" {
		if end, err = parseDate(until, loc); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing --until date: %w", err)
		}
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("empty range: %s is not after %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return start, end, nil
}
