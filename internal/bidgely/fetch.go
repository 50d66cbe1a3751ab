package bidgely

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jgoulah/bidgely/internal/apierrors"
	"github.com/jgoulah/bidgely/pkg/models"
)

type usageResponse struct {
	Payload []usageInterval `json:"payload"`
}

type usageInterval struct {
	IntervalStartDate string   `json:"intervalStartDate"`
	IntervalEndDate   string   `json:"intervalEndDate"`
	Consumption       *float64 `json:"consumption"`
	Cost              *float64 `json:"cost"`
	Temperature       *float64 `json:"temperature"`
	// null decodes to a nil slice, [] to an empty non-nil one
	ItemizationDetailsList []itemizationDetail `json:"itemizationDetailsList"`
}

type itemizationDetail struct {
	ID             float64 `json:"id"`
	Category       string  `json:"category"`
	Usage          float64 `json:"usage"`
	Cost           float64 `json:"cost"`
	Percentage     float64 `json:"percentage"`
	CostPercentage float64 `json:"costPercentage"`
}

// modeFor translates an aggregate into the service's mode. The service names
// modes after the span one call covers, one level coarser than the buckets
// it returns.
func modeFor(agg models.AggregateType) (string, error) {
	switch agg {
	case models.Month:
		return "year", nil
	case models.Day:
		return "month", nil
	case models.Hour:
		return "day", nil
	}
	return "", fmt.Errorf("unknown aggregate type: %q", agg)
}

// Fetch performs exactly one usage query for [start, end] and maps the
// response. It does not retry.
func (c *Client) Fetch(ctx context.Context, measurement models.MeasurementType, agg models.AggregateType, start, end time.Time, skipItemization bool) ([]models.CostRead, error) {
	if err := c.requireLogin(); err != nil {
		return nil, err
	}
	mode, err := modeFor(agg)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("measurement-type", string(measurement))
	params.Set("date-format", "DATE_TIME")
	params.Set("mode", mode)
	params.Set("start", strconv.FormatInt(start.Unix(), 10))
	params.Set("end", strconv.FormatInt(end.Unix(), 10))
	params.Set("skip-itemization", strconv.FormatBool(skipItemization))
	params.Set("skip-ongoing-cycle", strconv.FormatBool(!skipItemization))

	path := fmt.Sprintf("/v2.0/dashboard/users/%s/usage-chart-data", url.PathEscape(c.userID))

	var resp usageResponse
	if err := c.getJSON(ctx, "usage", path, params, &resp); err != nil {
		if apierrors.StatusCode(err) == 401 || apierrors.StatusCode(err) == 403 {
			c.logger.Debug().Str("user_id", c.userID).Msg("failed to read usage data due to invalid auth")
		}
		return nil, err
	}

	reads := make([]models.CostRead, 0, len(resp.Payload))
	missing := 0
	for _, interval := range resp.Payload {
		read, ok, err := c.mapInterval(interval, skipItemization)
		if err != nil {
			return nil, &apierrors.ConnectError{Endpoint: path, Message: "malformed interval", Err: err}
		}
		if !ok {
			missing++
			continue
		}
		reads = append(reads, read)
	}

	c.metrics.AddReads(string(measurement), string(agg), len(reads))
	c.logger.Debug().
		Str("user_id", c.userID).
		Str("mode", mode).
		Time("start", start).
		Time("end", end).
		Int("reads", len(reads)).
		Int("missing", missing).
		Msg("successful read")
	return reads, nil
}

// mapInterval converts one payload entry. ok is false for intervals the
// service has not billed yet (null consumption or cost); those are dropped
// rather than reported as zero usage.
func (c *Client) mapInterval(in usageInterval, skipItemization bool) (read models.CostRead, ok bool, err error) {
	start, err := parseTimestamp(in.IntervalStartDate, c.location)
	if err != nil {
		return models.CostRead{}, false, fmt.Errorf("parsing intervalStartDate: %w", err)
	}
	end, err := parseTimestamp(in.IntervalEndDate, c.location)
	if err != nil {
		return models.CostRead{}, false, fmt.Errorf("parsing intervalEndDate: %w", err)
	}
	if in.Consumption == nil || in.Cost == nil {
		return models.CostRead{}, false, nil
	}

	read = models.CostRead{
		StartTime:   start,
		EndTime:     end,
		Consumption: *in.Consumption,
		Cost:        *in.Cost,
		Temperature: in.Temperature,
	}

	if !skipItemization && in.ItemizationDetailsList != nil {
		read.Itemization = make([]models.Itemization, 0, len(in.ItemizationDetailsList))
		for _, item := range in.ItemizationDetailsList {
			read.Itemization = append(read.Itemization, models.Itemization{
				ID:             int(item.ID),
				Category:       models.MeasurementCategory(item.Category),
				Usage:          int(item.Usage),
				Cost:           int(item.Cost),
				Percentage:     int(item.Percentage),
				CostPercentage: int(item.CostPercentage),
			})
		}
	}
	return read, true, nil
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTimestamp accepts ISO datetimes with or without an offset. Values
// without one are in the utility's timezone.
func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
