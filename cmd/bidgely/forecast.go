package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgoulah/bidgely/pkg/models"
)

var (
	forecastMeasurement string
	forecastHome        int
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Show the current billing cycle forecast",
	Args:  cobra.NoArgs,
	RunE:  runForecast,
}

func init() {
	forecastCmd.Flags().StringVarP(&forecastMeasurement, "measurement", "m", "", "ELECTRIC or GAS (default from config)")
	forecastCmd.Flags().IntVar(&forecastHome, "home", 0, "home index (default from config, else 1)")
	rootCmd.AddCommand(forecastCmd)
}

func runForecast(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	measurement, err := cfg.GetMeasurement()
	if err != nil {
		return err
	}
	if forecastMeasurement != "" {
		if measurement, err = models.ParseMeasurementType(forecastMeasurement); err != nil {
			return err
		}
	}
	home := cfg.GetHome()
	if forecastHome > 0 {
		home = forecastHome
	}

	client, err := newClient(cfg, nil)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	forecast, err := withReauth(ctx, client, func() (*models.Forecast, error) {
		return client.GetForecast(ctx, measurement, home)
	})
	if err != nil {
		return fmt.Errorf("fetching forecast: %w", err)
	}

	fmt.Print(forecast)
	return nil
}
