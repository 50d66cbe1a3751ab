package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgoulah/bidgely/internal/utility"
)

var utilitiesCmd = &cobra.Command{
	Use:   "utilities",
	Short: "List supported utilities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("%-15s  %-20s  %s\n", "ID", "Name", "Timezone")
		for _, d := range utility.List() {
			fmt.Printf("%-15s  %-20s  %s\n", d.ID, d.Name, d.Timezone)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(utilitiesCmd)
}
