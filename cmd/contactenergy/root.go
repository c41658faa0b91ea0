package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jgoulah/contactenergy/internal/config"
	"github.com/jgoulah/contactenergy/internal/contact"
	"github.com/jgoulah/contactenergy/internal/database"
	"github.com/jgoulah/contactenergy/internal/logging"
)

var (
	cfgFile string
	dbPath  string
	envFile string
	verbose bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "contactenergy",
	Short: "Fetch electricity usage data from Contact Energy",
	Long: `contactenergy is a CLI tool to collect electricity usage data from the Contact Energy API.
It logs in, resolves your account and contract, and stores monthly, daily and hourly usage in a local SQLite database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.LoadDotEnv(envFile); err != nil {
			return err
		}

		level := ""
		if verbose {
			level = "debug"
		} else if cfg, err := loadConfig(); err == nil {
			level = cfg.LogLevel
		}
		l, err := logging.New(level)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./data.db)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with CONTACT_* variables")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the configuration file and applies environment overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// saveConfig saves the configuration file
func saveConfig(cfg *config.Config) error {
	return config.Save(getConfigPath(), cfg)
}

// openDB opens the database connection
func openDB(cfg *config.Config) (*database.DB, error) {
	path := cfg.GetDatabasePath()
	if dbPath != "" {
		path = dbPath
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}

// clientOptions builds the API client options shared by every command
func clientOptions(cfg *config.Config) ([]contact.Option, error) {
	variant, err := contact.VariantByName(cfg.GetAPIVersion())
	if err != nil {
		return nil, err
	}

	opts := []contact.Option{
		contact.WithAPIKey(cfg.Contact.APIKey),
		contact.WithVariant(variant),
		contact.WithTransport(contact.NewHTTPTransport(cfg.GetTimeout())),
		contact.WithLogger(logger),
	}
	if base := cfg.GetBaseURL(); base != "" {
		opts = append(opts, contact.WithBaseURL(base))
	}
	if cfg.Contact.AccountID != "" && cfg.Contact.ContractID != "" {
		opts = append(opts, contact.WithAccount(cfg.Contact.AccountID, cfg.Contact.ContractID))
	}
	return opts, nil
}

// newClient prefers a saved token and falls back to logging in with credentials
func newClient(ctx context.Context, cfg *config.Config) (*contact.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	var auth contact.Auth = contact.Credentials{Username: cfg.Contact.Username, Password: cfg.Contact.Password}
	if cfg.Contact.Token != "" {
		auth = contact.Token{Value: cfg.Contact.Token}
	}

	return contact.New(ctx, auth, opts...)
}

// loginWithCredentials always performs a fresh login
func loginWithCredentials(ctx context.Context, cfg *config.Config) (*contact.Client, error) {
	if !cfg.HasCredentials() {
		return nil, fmt.Errorf("username and password are required (set contact.username/contact.password or %s/%s)", config.EnvUsername, config.EnvPassword)
	}

	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	return contact.New(ctx, contact.Credentials{Username: cfg.Contact.Username, Password: cfg.Contact.Password}, opts...)
}

// ensureAccount resolves the account and contract unless they are already known
func ensureAccount(ctx context.Context, client *contact.Client, cfg *config.Config) error {
	if client.AccountID() != "" && client.ContractID() != "" {
		return nil
	}
	if err := client.ResolveAccount(ctx); err != nil {
		return fmt.Errorf("resolving account: %w", err)
	}
	cfg.Contact.AccountID = client.AccountID()
	cfg.Contact.ContractID = client.ContractID()
	logger.Debug("resolved account", zap.String("contract_id", client.ContractID()))
	return nil
}

// persistSession writes the token and resolved IDs back to the config file.
// The file is reloaded so values that only came from the environment are not written out.
func persistSession(client *contact.Client) error {
	fileCfg, err := config.Load(getConfigPath())
	if err != nil {
		return err
	}
	fileCfg.Contact.Token = client.Token()
	if client.AccountID() != "" && client.ContractID() != "" {
		fileCfg.Contact.AccountID = client.AccountID()
		fileCfg.Contact.ContractID = client.ContractID()
	}
	return saveConfig(fileCfg)
}
