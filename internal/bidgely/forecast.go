package bidgely

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jgoulah/bidgely/internal/apierrors"
	"github.com/jgoulah/bidgely/pkg/models"
)

type billProjection struct {
	BillStartDateFormatted    string  `json:"billStartDateFormatted"`
	BillEndDateFormatted      string  `json:"billEndDateFormatted"`
	CurrentConsumption        float64 `json:"currentConsumption"`
	CurrentPrice              float64 `json:"currentPrice"`
	ProjectionConsumption     float64 `json:"projectionConsumption"`
	ProjectionPrice           float64 `json:"projectionPrice"`
	AverageBillingConsumption float64 `json:"averageBillingConsumption"`
	AverageBillingPrice       float64 `json:"averageBillingPrice"`
}

// GetForecast returns usage and cost so far, projected and typical for the
// current billing cycle of the given home. Electric-only accounts answer gas
// requests with electric figures.
func (c *Client) GetForecast(ctx context.Context, measurement models.MeasurementType, home int) (*models.Forecast, error) {
	if err := c.requireLogin(); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/2.1/users/%s/homes/%d/billprojections", url.PathEscape(c.userID), home)
	params := url.Values{}
	params.Set("measurement-type", string(measurement))
	params.Set("convert-to-kwh", "true")

	var proj billProjection
	if err := c.getJSON(ctx, "forecast", path, params, &proj); err != nil {
		if apierrors.StatusCode(err) != 0 {
			c.logger.Debug().Int("home", home).Msg("forecast request rejected, check the configured home")
		}
		return nil, err
	}

	start, err := time.ParseInLocation(time.DateOnly, proj.BillStartDateFormatted, c.location)
	if err != nil {
		return nil, &apierrors.ConnectError{Endpoint: path, Message: "malformed billStartDateFormatted", Err: err}
	}
	end, err := time.ParseInLocation(time.DateOnly, proj.BillEndDateFormatted, c.location)
	if err != nil {
		return nil, &apierrors.ConnectError{Endpoint: path, Message: "malformed billEndDateFormatted", Err: err}
	}

	forecast := &models.Forecast{
		StartDate:       start,
		EndDate:         end,
		UnitOfMeasure:   models.UnitFor(measurement),
		UsageToDate:     proj.CurrentConsumption,
		CostToDate:      proj.CurrentPrice,
		ForecastedUsage: proj.ProjectionConsumption,
		ForecastedCost:  proj.ProjectionPrice,
		TypicalUsage:    proj.AverageBillingConsumption,
		TypicalCost:     proj.AverageBillingPrice,
	}
	c.metrics.ObserveForecast(string(measurement), forecast)
	return forecast, nil
}
