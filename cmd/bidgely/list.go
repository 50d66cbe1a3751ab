package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/bidgely/internal/database"
	"github.com/jgoulah/bidgely/internal/utility"
	"github.com/jgoulah/bidgely/pkg/models"
)

var (
	listAggregate   string
	listMeasurement string
	listSince       string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored reads",
	Long:  `Displays reads stored by 'bidgely fetch' for the configured utility.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVarP(&listAggregate, "aggregate", "a", "day", "month, day or hour")
	listCmd.Flags().StringVarP(&listMeasurement, "measurement", "m", "", "ELECTRIC or GAS (default from config)")
	listCmd.Flags().StringVar(&listSince, "since", "", "only reads since this date (YYYY-MM-DD or Nd)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	agg, err := models.ParseAggregateType(listAggregate)
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
	if listMeasurement != "" {
		if measurement, err = models.ParseMeasurementType(listMeasurement); err != nil {
			return err
		}
	}
	u, err := utility.Resolve(cfg.Utility)
	if err != nil {
		return err
	}
	loc, err := utility.Location(u)
	if err != nil {
		return err
	}

	var since time.Time
	if listSince != "" {
		if since, err = parseDate(listSince, loc); err != nil {
			return fmt.Errorf("parsing --since date: %w", err)
		}
	}

	// Open database
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	records, err := db.ListReads(database.Series{Utility: u.ID(), Measurement: measurement, Aggregate: agg}, since)
	if err != nil {
		return fmt.Errorf("listing reads: %w", err)
	}
	if len(records) == 0 {
		fmt.Printf("No %s %s data found for %s\n", measurement, agg, u.Name())
		return nil
	}

	reads := make([]models.CostRead, len(records))
	for i, rec := range records {
		reads[i] = rec.CostRead
	}
	models.SortByStart(reads)

	fmt.Printf("\n%s %s %s reads:\n", u.Name(), measurement, agg)
	printReads(os.Stdout, reads, loc, agg, models.UnitFor(measurement))
	return nil
}
