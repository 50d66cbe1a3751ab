package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/bidgely/internal/bidgely"
	"github.com/jgoulah/bidgely/internal/utility"
	"github.com/jgoulah/bidgely/pkg/models"
)

var (
	breakdownSince string
	breakdownUntil string
)

var breakdownCmd = &cobra.Command{
	Use:   "breakdown",
	Short: "Show monthly electric usage by appliance category",
	Args:  cobra.NoArgs,
	RunE:  runBreakdown,
}

func init() {
	breakdownCmd.Flags().StringVar(&breakdownSince, "since", "", "start date (YYYY-MM-DD or Nd, default one year ago)")
	breakdownCmd.Flags().StringVar(&breakdownUntil, "until", "", "end date (YYYY-MM-DD, default yesterday)")
	rootCmd.AddCommand(breakdownCmd)
}

func runBreakdown(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	client, err := newClient(cfg, nil)
	if err != nil {
		return err
	}

	end := bidgely.DefaultEnd()
	start, end, err := dateRange(client, breakdownSince, breakdownUntil, end.AddDate(-1, 0, 0), end)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	reads, err := withReauth(ctx, client, func() ([]models.CostRead, error) {
		return client.GetBreakdown(ctx, start, end)
	})
	if err != nil {
		return fmt.Errorf("fetching breakdown: %w", err)
	}

	if len(reads) == 0 {
		fmt.Println("No data found")
		return nil
	}

	loc, _ := utility.Location(client.Utility())
	fmt.Printf("Breakdown %s to %s\n", start.Format(time.DateOnly), end.Format(time.DateOnly))
	for _, r := range reads {
		printItemization(os.Stdout, r, loc)
	}
	return nil
}
