package models

import (
	"math/rand"
	"strings"
	"testing"
	"time"
)

func ptr(f float64) *float64 { return &f }

func TestCostReadMerge(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	a := CostRead{
		StartTime:   base,
		EndTime:     base.Add(time.Hour),
		Consumption: 1.5,
		Cost:        0.25,
		Temperature: ptr(12),
		Itemization: []Itemization{{ID: 1, Category: Cooking, Usage: 1}},
	}
	b := CostRead{
		StartTime:   base.Add(time.Hour),
		EndTime:     base.Add(2 * time.Hour),
		Consumption: 2.0,
		Cost:        0.5,
		Temperature: ptr(14),
	}

	for name, got := range map[string]CostRead{"a+b": a.Merge(b), "b+a": b.Merge(a)} {
		if !got.StartTime.Equal(base) {
			t.Errorf("%s: start = %v, want %v", name, got.StartTime, base)
		}
		if !got.EndTime.Equal(base.Add(2 * time.Hour)) {
			t.Errorf("%s: end = %v, want %v", name, got.EndTime, base.Add(2*time.Hour))
		}
		if got.Consumption != 3.5 {
			t.Errorf("%s: consumption = %v, want 3.5", name, got.Consumption)
		}
		if got.Cost != 0.75 {
			t.Errorf("%s: cost = %v, want 0.75", name, got.Cost)
		}
		if got.Temperature != nil {
			t.Errorf("%s: temperature = %v, want nil", name, *got.Temperature)
		}
		if got.Itemized() {
			t.Errorf("%s: itemization should be absent after merge", name)
		}
	}
}

func TestSortByStartRecoversChronologicalOrder(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var reads []CostRead
	for i := 0; i < 48; i++ {
		start := base.Add(time.Duration(i) * time.Hour)
		reads = append(reads, CostRead{StartTime: start, EndTime: start.Add(time.Hour), Consumption: float64(i)})
	}

	shuffled := make([]CostRead, len(reads))
	copy(shuffled, reads)
	rng := rand.New(rand.NewSource(7))
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	SortByStart(shuffled)
	for i := range reads {
		if !shuffled[i].StartTime.Equal(reads[i].StartTime) {
			t.Fatalf("index %d: start = %v, want %v", i, shuffled[i].StartTime, reads[i].StartTime)
		}
	}
}

func TestCostReadBeforeIsStrict(t *testing.T) {
	now := time.Now()
	a := CostRead{StartTime: now}
	b := CostRead{StartTime: now.Add(time.Minute)}

	if a.Before(a) {
		t.Error("a read must not be before itself")
	}
	if !a.Before(b) || b.Before(a) {
		t.Error("ordering by start time is not asymmetric")
	}
}

func TestParseEnums(t *testing.T) {
	if m, err := ParseMeasurementType("gas"); err != nil || m != Gas {
		t.Errorf("ParseMeasurementType(gas) = %q, %v", m, err)
	}
	if _, err := ParseMeasurementType("water"); err == nil {
		t.Error("expected error for unknown measurement type")
	}
	if a, err := ParseAggregateType("HOUR"); err != nil || a != Hour {
		t.Errorf("ParseAggregateType(HOUR) = %q, %v", a, err)
	}
	if _, err := ParseAggregateType("week"); err == nil {
		t.Error("expected error for unknown aggregate type")
	}
	if UnitFor(Electric) != KWh || UnitFor(Gas) != CCF {
		t.Error("unexpected unit mapping")
	}
}

func TestForecastString(t *testing.T) {
	f := Forecast{
		StartDate:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
		UnitOfMeasure: KWh,
		UsageToDate:   120.5,
		CostToDate:    18.25,
	}
	s := f.String()
	for _, want := range []string{"Bill Start Date: 2024-05-01", "Usage to Date: 120.50 kWh", "Cost to Date: $18.25"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() missing %q:\n%s", want, s)
		}
	}
}
