package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jgoulah/bidgely/internal/bidgely"
	"github.com/jgoulah/bidgely/internal/utility"
	"github.com/jgoulah/bidgely/pkg/models"
)

var (
	usageAggregate   string
	usageMeasurement string
	usageSince       string
	usageUntil       string
	usageItemize     bool
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show consumption and cost reads",
	Long: `Retrieves reads from the usage service and prints them.

Aggregates: month (default), day, hour. Day and hour ranges are split into
30-day and 1-day requests and fetched concurrently.`,
	Args: cobra.NoArgs,
	RunE: runUsage,
}

func init() {
	usageCmd.Flags().StringVarP(&usageAggregate, "aggregate", "a", "month", "month, day or hour")
	usageCmd.Flags().StringVarP(&usageMeasurement, "measurement", "m", "", "ELECTRIC or GAS (default from config)")
	usageCmd.Flags().StringVar(&usageSince, "since", "", "start date (YYYY-MM-DD or Nd for N days ago)")
	usageCmd.Flags().StringVar(&usageUntil, "until", "", "end date (YYYY-MM-DD, default yesterday)")
	usageCmd.Flags().BoolVar(&usageItemize, "itemize", false, "request the per-category breakdown")
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	agg, err := models.ParseAggregateType(usageAggregate)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	measurement, err := cfg.GetMeasurement()
	if err != nil {
		return err
	}
	if usageMeasurement != "" {
		if measurement, err = models.ParseMeasurementType(usageMeasurement); err != nil {
			return err
		}
	}

	client, err := newClient(cfg, nil)
	if err != nil {
		return err
	}
	start, end, err := dateRange(client, usageSince, usageUntil, bidgely.DefaultStart, bidgely.DefaultEnd())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	reads, err := withReauth(ctx, client, func() ([]models.CostRead, error) {
		return client.GetUsageData(ctx, measurement, agg, start, end, !usageItemize)
	})
	if err != nil {
		return fmt.Errorf("fetching usage: %w", err)
	}

	if len(reads) == 0 {
		fmt.Println("No data found")
		return nil
	}

	loc, _ := utility.Location(client.Utility())
	printReads(os.Stdout, reads, loc, agg, models.UnitFor(measurement))
	if usageItemize {
		for _, r := range reads {
			printItemization(os.Stdout, r, loc)
		}
	}
	return nil
}
