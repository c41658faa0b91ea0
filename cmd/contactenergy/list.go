package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgoulah/contactenergy/internal/contact"
	"github.com/jgoulah/contactenergy/pkg/models"
)

var (
	listInterval string
	listContract string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored usage data",
	Long:  `Displays stored electricity usage data from the database.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listInterval, "interval", "", "Filter by interval (monthly, daily or hourly)")
	listCmd.Flags().StringVar(&listContract, "contract", "", "Filter by contract ID")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	intervals, err := selectIntervals(listInterval)
	if err != nil {
		return err
	}

	// Open database
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	// Query and display data for each interval
	for _, interval := range intervals {
		data, err := db.ListUsage(listContract, interval)
		if err != nil {
			return fmt.Errorf("listing %s data: %w", interval, err)
		}

		if len(data) == 0 {
			if listInterval != "" {
				fmt.Printf("No %s data found\n", interval)
			}
			continue
		}

		fmt.Printf("\n%s Usage Data:\n", interval)
		fmt.Println("------------------------------------------------------------")
		fmt.Printf("%-25s  %10s  %10s  %s\n", "Timestamp", "Usage", "Cost", "Unit")
		fmt.Println("------------------------------------------------------------")

		var total float64
		for _, record := range data {
			cost := "-"
			if record.DollarValue != nil {
				cost = fmt.Sprintf("%.2f", *record.DollarValue)
			}
			fmt.Printf("%-25s  %10.3f  %10s  %s\n", record.Timestamp.Format("2006-01-02 15:04 -07:00"), record.Value, cost, record.Unit)
			total += record.Value
		}

		fmt.Println("------------------------------------------------------------")
		fmt.Printf("Total: %.3f (%d records)\n", total, len(data))
	}

	return nil
}

// selectIntervals returns the single requested interval, or all of them
func selectIntervals(name string) ([]models.Interval, error) {
	if name == "" {
		return models.Intervals, nil
	}
	interval, err := contact.ParseInterval(name)
	if err != nil {
		return nil, err
	}
	return []models.Interval{interval}, nil
}
