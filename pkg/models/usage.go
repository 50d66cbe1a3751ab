package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MeasurementType is the meter type, electric or gas
type MeasurementType string

const (
	Electric MeasurementType = "ELECTRIC"
	Gas      MeasurementType = "GAS"
)

// ParseMeasurementType accepts the wire value in any case
func ParseMeasurementType(s string) (MeasurementType, error) {
	switch MeasurementType(strings.ToUpper(s)) {
	case Electric:
		return Electric, nil
	case Gas:
		return Gas, nil
	}
	return "", fmt.Errorf("unknown measurement type: %s (available: ELECTRIC, GAS)", s)
}

// UnitOfMeasure is the unit of the associated meter type.
// kWh for electricity or Therm/CCF for gas.
type UnitOfMeasure string

const (
	KWh   UnitOfMeasure = "kWh"
	Wh    UnitOfMeasure = "Wh"
	Therm UnitOfMeasure = "THERM"
	CCF   UnitOfMeasure = "CCF"
)

// UnitFor returns the unit the usage service reports for a measurement type
func UnitFor(m MeasurementType) UnitOfMeasure {
	if m == Electric {
		return KWh
	}
	return CCF
}

// AggregateType is the bucket size for historical data
type AggregateType string

const (
	Month AggregateType = "month"
	Day   AggregateType = "day"
	Hour  AggregateType = "hour"
)

// ParseAggregateType accepts month, day or hour in any case
func ParseAggregateType(s string) (AggregateType, error) {
	switch AggregateType(strings.ToLower(s)) {
	case Month:
		return Month, nil
	case Day:
		return Day, nil
	case Hour:
		return Hour, nil
	}
	return "", fmt.Errorf("unknown aggregate type: %s (available: month, day, hour)", s)
}

// MeasurementCategory is the usage service's classification of energy usage
type MeasurementCategory string

const (
	AlwaysOn      MeasurementCategory = "alwaysOn"
	Cooking       MeasurementCategory = "cooking"
	Entertainment MeasurementCategory = "entertainment"
	Laundry       MeasurementCategory = "laundry"
	Lighting      MeasurementCategory = "lighting"
	Other         MeasurementCategory = "other"
	Refrigeration MeasurementCategory = "refrigeration"
)

// Itemization is one category's share of a read
type Itemization struct {
	ID             int                 `json:"id"`
	Category       MeasurementCategory `json:"category"`
	Usage          int                 `json:"usage"`
	Cost           int                 `json:"cost"`
	Percentage     int                 `json:"percentage"`
	CostPercentage int                 `json:"cost_percentage"`
}

// CostRead is a read that has both consumption and cost data.
// Temperature is nil when the service did not report one. Itemization is nil
// when it was not requested or not available, and non-nil (possibly empty)
// when the service returned a breakdown.
type CostRead struct {
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Consumption float64       `json:"consumption"`
	Cost        float64       `json:"cost"`
	Temperature *float64      `json:"temperature,omitempty"`
	Itemization []Itemization `json:"itemization,omitempty"`
}

// Itemized reports whether the read carries a breakdown
func (r CostRead) Itemized() bool {
	return r.Itemization != nil
}

// Merge returns a read spanning both intervals with summed consumption and cost.
// Temperature and itemization do not aggregate and are dropped.
func (r CostRead) Merge(other CostRead) CostRead {
	start := r.StartTime
	if other.StartTime.Before(start) {
		start = other.StartTime
	}
	end := r.EndTime
	if other.EndTime.After(end) {
		end = other.EndTime
	}
	return CostRead{
		StartTime:   start,
		EndTime:     end,
		Consumption: r.Consumption + other.Consumption,
		Cost:        r.Cost + other.Cost,
	}
}

// Before orders reads by start time
func (r CostRead) Before(other CostRead) bool {
	return r.StartTime.Before(other.StartTime)
}

// SortByStart sorts reads chronologically, keeping equal start times in input order
func SortByStart(reads []CostRead) {
	sort.SliceStable(reads, func(i, j int) bool {
		return reads[i].Before(reads[j])
	})
}

// Forecast is the current billing cycle snapshot for an account
type Forecast struct {
	StartDate       time.Time     `json:"start_date"`
	EndDate         time.Time     `json:"end_date"`
	UnitOfMeasure   UnitOfMeasure `json:"unit_of_measure"`
	UsageToDate     float64       `json:"usage_to_date"`
	CostToDate      float64       `json:"cost_to_date"`
	ForecastedUsage float64       `json:"forecasted_usage"`
	ForecastedCost  float64       `json:"forecasted_cost"`
	TypicalUsage    float64       `json:"typical_usage"`
	TypicalCost     float64       `json:"typical_cost"`
}

func (f Forecast) String() string {
	return fmt.Sprintf(`Forecast:
    Bill Start Date: %s
    Bill End Date: %s
    Usage to Date: %.2f %s
    Forecasted Usage: %.2f %s
    Typical Usage: %.2f %s
    Cost to Date: $%.2f
    Forecasted Cost: $%.2f
    Typical Cost: $%.2f
`,
		f.StartDate.Format("2006-01-02"),
		f.EndDate.Format("2006-01-02"),
		f.UsageToDate, f.UnitOfMeasure,
		f.ForecastedUsage, f.UnitOfMeasure,
		f.TypicalUsage, f.UnitOfMeasure,
		f.CostToDate,
		f.ForecastedCost,
		f.TypicalCost,
	)
}
