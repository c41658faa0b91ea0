package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jgoulah/contactenergy/internal/publisher"
	"github.com/jgoulah/contactenergy/pkg/models"
)

var (
	publishInterval string
	publishContract string
	publishSince    string
	publishUntil    string
	publishAll      bool
	publishLimit    int
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish usage data to Home Assistant",
	Long:  `Reads stored usage data from the database and publishes it to Home Assistant via the HTTP API and/or MQTT.`,
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishInterval, "interval", "hourly", "Interval to publish (monthly, daily, hourly, or empty for all)")
	publishCmd.Flags().StringVar(&publishContract, "contract", "", "Only publish records of this contract ID")
	publishCmd.Flags().StringVar(&publishSince, "since", "", "Only publish data since this date (YYYY-MM-DD or relative like 7d)")
	publishCmd.Flags().StringVar(&publishUntil, "until", "", "Only publish data until this date (YYYY-MM-DD)")
	publishCmd.Flags().BoolVar(&publishAll, "all", false, "Force republish all records (ignore published flag)")
	publishCmd.Flags().IntVar(&publishLimit, "limit", 0, "Limit number of records to publish (0 = no limit)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	// Load config
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !cfg.HomeAssistant.Enabled && !cfg.MQTT.Enabled {
		return fmt.Errorf("neither Home Assistant nor MQTT is enabled in config")
	}

	intervals, err := selectIntervals(publishInterval)
	if err != nil {
		return err
	}

	// Parse date filters if provided
	var sinceDate, untilDate *time.Time
	if publishSince != "" {
		since, err := parseDate(publishSince)
		if err != nil {
			return fmt.Errorf("parsing --since date: %w", err)
		}
		sinceDate = &since
	}
	if publishUntil != "" {
		until, err := parseDate(publishUntil)
		if err != nil {
			return fmt.Errorf("parsing --until date: %w", err)
		}
		// Include the whole day
		until = until.AddDate(0, 0, 1)
		untilDate = &until
	}

	// Create publisher
	pub, err := publisher.New(cfg.MQTT, cfg.HomeAssistant, logger)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	// Open database
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	totalPublished := 0
	for _, interval := range intervals {
		var data []models.StoredUsage
		if publishAll {
			// When using --all, force republish ALL records
			data, err = db.ListUsage(publishContract, interval)
		} else {
			// Default: only publish unpublished records
			data, err = db.ListUnpublishedUsage(publishContract, interval)
		}
		if err != nil {
			return fmt.Errorf("listing %s data: %w", interval, err)
		}

		filteredData := filterByDate(data, sinceDate, untilDate)
		if len(filteredData) == 0 {
			fmt.Printf("No %s data to publish\n", interval)
			continue
		}

		// Apply limit if specified
		if publishLimit > 0 && len(filteredData) > publishLimit {
			filteredData = filteredData[:publishLimit]
			fmt.Printf("Limiting to %d records (--limit flag)\n", publishLimit)
		}

		fmt.Printf("Publishing %d %s records...\n", len(filteredData), interval)
		published := 0
		for i, record := range filteredData {
			fmt.Printf("[%d/%d] Publishing %s (%.3f %s)... ", i+1, len(filteredData), record.Timestamp.Format(time.RFC3339), record.Value, record.Unit)
			if err := pub.Publish(ctx, record); err != nil {
				fmt.Printf("FAILED: %v\n", err)
				logger.Warn("publish failed", zap.Int64("id", record.ID), zap.Error(err))
				continue
			}

			// Mark record as published in database
			if err := db.MarkPublished(record.ID); err != nil {
				fmt.Printf("✓ (warning: failed to mark as published: %v)\n", err)
			} else {
				fmt.Printf("✓\n")
			}
			published++
		}

		fmt.Printf("Successfully published %d/%d %s records\n", published, len(filteredData), interval)
		totalPublished += published
	}

	fmt.Printf("\nTotal records published: %d\n", totalPublished)
	return nil
}

// filterByDate keeps records with since <= timestamp < until; nil bounds are open
func filterByDate(data []models.StoredUsage, since, until *time.Time) []models.StoredUsage {
	if since == nil && until == nil {
		return data
	}
	filtered := []models.StoredUsage{}
	for _, record := range data {
		if since != nil && record.Timestamp.Before(*since) {
			continue
		}
		if until != nil && !record.Timestamp.Before(*until) {
			continue
		}
		filtered = append(filtered, record)
	}
	return filtered
}

// parseDate parses a date string in either YYYY-MM-DD format or relative format (e.g., "7d")
func parseDate(dateStr string) (time.Time, error) {
	// Try absolute date format first
	t, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
	if err == nil {
		return t, nil
	}

	// Try relative format (e.g., "7d" for 7 days ago)
	if len(dateStr) > 1 && dateStr[len(dateStr)-1] == 'd' {
		daysStr := dateStr[:len(dateStr)-1]
		var days int
		if _, err := fmt.Sscanf(daysStr, "%d", &days); err == nil {
			now := time.Now()
			today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			return today.AddDate(0, 0, -days), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format: %s (use YYYY-MM-DD or Nd for N days ago)", dateStr)
}
