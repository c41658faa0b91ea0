package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jgoulah/contactenergy/internal/config"
	"github.com/jgoulah/contactenergy/internal/contact"
	"github.com/jgoulah/contactenergy/internal/logging"
	"github.com/jgoulah/contactenergy/pkg/models"
)

var (
	fetchFrom     string
	fetchTo       string
	fetchInterval string
	fetchDay      string
	fetchNoStore  bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [mode]",
	Short: "Fetch usage data from Contact Energy",
	Long: `Fetches usage data and stores it in the local SQLite database.

Modes:
  latest         most recent monthly record for the current month
  range          every record between --from and --to at --interval granularity
  hourly         hourly records for --day
  latest-hourly  hourly records for the most recent day with data (usually a few days ago)`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"latest", "range", "hourly", "latest-hourly"},
	RunE:      runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchFrom, "from", "30d", "Start date for range mode (YYYY-MM-DD or Nd for N days ago)")
	fetchCmd.Flags().StringVar(&fetchTo, "to", "", "End date for range mode (YYYY-MM-DD, default: today)")
	fetchCmd.Flags().StringVar(&fetchInterval, "interval", "daily", "Granularity for range mode (monthly, daily, hourly)")
	fetchCmd.Flags().StringVar(&fetchDay, "day", "7d", "Day for hourly mode (YYYY-MM-DD or Nd for N days ago)")
	fetchCmd.Flags().BoolVar(&fetchNoStore, "no-store", false, "Print records without storing them")
	rootCmd.AddCommand(fetchCmd)
}

// fetchPlan is a resolved fetch mode ready to run against a client
type fetchPlan struct {
	interval models.Interval
	run      func(ctx context.Context, c *contact.Client) ([]models.UsageDatum, error)
}

func planFetch(mode string) (*fetchPlan, error) {
	switch mode {
	case "latest":
		return &fetchPlan{
			interval: models.Monthly,
			run: func(ctx context.Context, c *contact.Client) ([]models.UsageDatum, error) {
				d, err := c.LatestUsage(ctx)
				if err != nil {
					return nil, err
				}
				return []models.UsageDatum{d}, nil
			},
		}, nil

	case "range":
		interval, err := contact.ParseInterval(fetchInterval)
		if err != nil {
			return nil, err
		}
		start, err := parseDate(fetchFrom)
		if err != nil {
			return nil, fmt.Errorf("parsing --from date: %w", err)
		}
		end := time.Now()
		if fetchTo != "" {
			if end, err = parseDate(fetchTo); err != nil {
				return nil, fmt.Errorf("parsing --to date: %w", err)
			}
		}
		return &fetchPlan{
			interval: interval,
			run: func(ctx context.Context, c *contact.Client) ([]models.UsageDatum, error) {
				return c.Usage(ctx, start, end, interval)
			},
		}, nil

	case "hourly":
		day, err := parseDate(fetchDay)
		if err != nil {
			return nil, fmt.Errorf("parsing --day date: %w", err)
		}
		return &fetchPlan{
			interval: models.Hourly,
			run: func(ctx context.Context, c *contact.Client) ([]models.UsageDatum, error) {
				return c.HourlyUsage(ctx, day)
			},
		}, nil

	case "latest-hourly":
		return &fetchPlan{
			interval: models.Hourly,
			run: func(ctx context.Context, c *contact.Client) ([]models.UsageDatum, error) {
				return c.LatestHourlyUsage(ctx)
			},
		}, nil
	}

	return nil, fmt.Errorf("unknown mode: %s (available: latest, range, hourly, latest-hourly)", mode)
}

func runFetch(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Fetch started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	plan, err := planFetch(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()
	savedToken, savedContract := cfg.Contact.Token, cfg.Contact.ContractID
	client, err := newClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	data, err := fetchWith(ctx, client, cfg, plan)
	if err != nil && contact.IsAuthError(err) && cfg.HasCredentials() {
		// The saved token was rejected; log in once more
		logger.Warn("request rejected, logging in again", zap.Error(err))
		fmt.Println("⚠ Authentication rejected, logging in again...")
		if client, err = loginWithCredentials(ctx, cfg); err != nil {
			return fmt.Errorf("refreshing auth: %w", err)
		}
		data, err = fetchWith(ctx, client, cfg, plan)
	}
	if err != nil {
		if contact.IsAuthError(err) && !cfg.HasCredentials() {
			return fmt.Errorf("%w (hint: add username/password to config.yaml or run 'contactenergy login')", err)
		}
		return err
	}

	changed := client.Token() != savedToken || client.ContractID() != savedContract
	return finishFetch(cfg, client, plan, data, changed)
}

func fetchWith(ctx context.Context, client *contact.Client, cfg *config.Config, plan *fetchPlan) ([]models.UsageDatum, error) {
	if err := ensureAccount(ctx, client, cfg); err != nil {
		return nil, err
	}
	data, err := plan.run(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("fetching usage: %w", err)
	}
	return data, nil
}

func finishFetch(cfg *config.Config, client *contact.Client, plan *fetchPlan, data []models.UsageDatum, sessionChanged bool) error {
	if sessionChanged {
		if err := persistSession(client); err != nil {
			fmt.Printf("Warning: Could not save session: %v\n", err)
		} else {
			fmt.Println("✓ Session saved")
		}
	}

	if len(data) == 0 {
		fmt.Println("No data found")
		return nil
	}

	for _, d := range data {
		fmt.Println(d)
	}

	if fetchNoStore {
		return nil
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	log := logging.WithContract(logger, client.ContractID())
	inserted := 0
	for _, d := range data {
		added, err := db.InsertUsage(client.ContractID(), plan.interval, d)
		if err != nil {
			return fmt.Errorf("inserting usage data: %w", err)
		}
		if added {
			inserted++
		}
	}
	log.Debug("stored usage", zap.String("interval", string(plan.interval)), zap.Int("records", len(data)), zap.Int("new", inserted))

	fmt.Printf("✓ Processed %d records (%d new, duplicates skipped)\n", len(data), inserted)
	return nil
}
