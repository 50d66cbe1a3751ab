package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jgoulah/bidgely/pkg/models"
)

// periodLabel formats a read's start at the granularity of its aggregate
func periodLabel(t time.Time, loc *time.Location, agg models.AggregateType) string {
	t = t.In(loc)
	switch agg {
	case models.Month:
		return t.Format("2006-01")
	case models.Day:
		return t.Format("2006-01-02")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func printReads(w io.Writer, reads []models.CostRead, loc *time.Location, agg models.AggregateType, unit models.UnitOfMeasure) {
	fmt.Fprintln(w, "----------------------------------------------------")
	fmt.Fprintf(w, "%-17s  %12s  %10s  %8s\n", "Period", string(unit), "Cost", "Temp")
	fmt.Fprintln(w, "----------------------------------------------------")

	var total models.CostRead
	for _, r := range reads {
		temp := "-"
		if r.Temperature != nil {
			temp = fmt.Sprintf("%.1f", *r.Temperature)
		}
		fmt.Fprintf(w, "%-17s  %12s  %10s  %8s\n",
			periodLabel(r.StartTime, loc, agg),
			humanize.CommafWithDigits(r.Consumption, 2),
			"$"+humanize.CommafWithDigits(r.Cost, 2),
			temp,
		)
		total = total.Merge(r)
	}

	fmt.Fprintln(w, "----------------------------------------------------")
	fmt.Fprintf(w, "Total: %s %s, $%s (%s reads)\n",
		humanize.CommafWithDigits(total.Consumption, 2), unit,
		humanize.CommafWithDigits(total.Cost, 2),
		humanize.Comma(int64(len(reads))),
	)
}

func printItemization(w io.Writer, r models.CostRead, loc *time.Location) {
	fmt.Fprintf(w, "\n%s  %s kWh  $%s\n",
		periodLabel(r.StartTime, loc, models.Month),
		humanize.CommafWithDigits(r.Consumption, 2),
		humanize.CommafWithDigits(r.Cost, 2),
	)
	if !r.Itemized() {
		fmt.Fprintln(w, "  no breakdown available")
		return
	}
	for _, item := range r.Itemization {
		fmt.Fprintf(w, "  %-15s %8s kWh %3d%%  $%-8s %3d%%\n",
			item.Category,
			humanize.Comma(int64(item.Usage)), item.Percentage,
			humanize.Comma(int64(item.Cost)), item.CostPercentage,
		)
	}
}
