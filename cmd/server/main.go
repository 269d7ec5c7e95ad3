package main

import (
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "GreenLedger farm-to-consumer traceability service",
	Long: `GreenLedger issues and tracks QR codes for agricultural produce,
authenticates farmers, warehouse staff and consumers, and serves the
reference data behind every dashboard.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute command: %v", err)
	}
}
