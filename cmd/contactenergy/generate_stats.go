package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/contactenergy/internal/config"
	"github.com/jgoulah/contactenergy/internal/publisher"
)

var generateStatsCmd = &cobra.Command{
	Use:   "generate-stats",
	Short: "Generate statistics in Home Assistant from backfilled states",
	Long:  `Calls AppDaemon endpoint to compile statistics from individual hourly consumption states. Run this after publishing to populate the Energy dashboard.`,
	RunE:  runGenerateStats,
}

func init() {
	rootCmd.AddCommand(generateStatsCmd)
}

func runGenerateStats(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Generate Statistics started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	// Load config
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Check if Home Assistant is configured
	if !cfg.HomeAssistant.Enabled {
		return fmt.Errorf("Home Assistant is not enabled in config")
	}

	// Statistics only go through the HTTP API, so MQTT stays off here
	pub, err := publisher.New(config.MQTTConfig{}, cfg.HomeAssistant, logger)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}

	// Longer timeout for statistics generation
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	fmt.Printf("Generating statistics for %s...\n", cfg.HomeAssistant.EntityID)
	result, err := pub.GenerateStatistics(ctx)
	if err != nil {
		return err
	}

	// Display results
	fmt.Printf("✓ Statistics generated successfully\n")
	fmt.Printf("  - Inserted: %d new statistics records\n", result.Inserted)
	fmt.Printf("  - Updated: %d existing statistics records\n", result.Updated)
	fmt.Printf("  - Total hours: %d\n", result.TotalHours)

	return nil
}
