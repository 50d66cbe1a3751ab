package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/bidgely/internal/database"
	"github.com/jgoulah/bidgely/internal/publisher"
	"github.com/jgoulah/bidgely/internal/utility"
	"github.com/jgoulah/bidgely/pkg/models"
)

var (
	publishAggregate   string
	publishMeasurement string
	publishAll         bool
	publishLimit       int
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish stored reads to MQTT",
	Long:  `Reads stored usage data from the database and publishes it to the configured MQTT broker.`,
	Args:  cobra.NoArgs,
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().StringVarP(&publishAggregate, "aggregate", "a", "day", "month, day or hour")
	publishCmd.Flags().StringVarP(&publishMeasurement, "measurement", "m", "", "ELECTRIC or GAS (default from config)")
	publishCmd.Flags().BoolVar(&publishAll, "all", false, "Force republish all records (ignore published flag)")
	publishCmd.Flags().IntVar(&publishLimit, "limit", 0, "Limit number of records to publish (0 = no limit)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	agg, err := models.ParseAggregateType(publishAggregate)
	if err != nil {
		return err
	}

	// Load config
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	measurement, err := cfg.GetMeasurement()
	if err != nil {
		return err
	}
	if publishMeasurement != "" {
		if measurement, err = models.ParseMeasurementType(publishMeasurement); err != nil {
			return err
		}
	}
	u, err := utility.Resolve(cfg.Utility)
	if err != nil {
		return err
	}

	// Create publisher
	pub, err := publisher.New(cfg.MQTT, logger)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	// Open database
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	series := database.Series{Utility: u.ID(), Measurement: measurement, Aggregate: agg}
	published, total, err := publishStored(db, pub, series, publishAll, publishLimit)
	if err != nil {
		return err
	}
	if total == 0 {
		fmt.Printf("No unpublished %s %s data found\n", measurement, agg)
		return nil
	}

	fmt.Printf("Successfully published %d/%d records\n", published, total)
	return nil
}

// publishStored sends stored reads oldest first and marks them published.
// A failed record is logged and skipped.
func publishStored(db *database.DB, pub *publisher.Publisher, s database.Series, all bool, limit int) (int, int, error) {
	var records []database.Record
	var err error
	if all {
		// When using --all, force republish ALL records
		records, err = db.ListReads(s, time.Time{})
		for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
			records[i], records[j] = records[j], records[i]
		}
	} else {
		records, err = db.ListUnpublished(s)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("listing reads: %w", err)
	}

	// Apply limit if specified
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	published := 0
	for _, rec := range records {
		if err := pub.PublishRead(s.Utility, s.Measurement, s.Aggregate, rec.CostRead); err != nil {
			logger.Warn().Err(err).Time("start", rec.StartTime).Msg("publish failed")
			continue
		}

		// Mark record as published in database
		if err := db.MarkPublished(rec.ID); err != nil {
			logger.Warn().Err(err).Int64("id", rec.ID).Msg("failed to mark as published")
		}
		published++
	}
	return published, len(records), nil
}
