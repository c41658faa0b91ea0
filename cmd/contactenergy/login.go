package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login to Contact Energy and save the session token",
	Long: `Logs in with the configured username and password, resolves the account and contract,
and saves the token and IDs to the config file so later commands can skip the login.

Credentials come from config.yaml (contact.username / contact.password) or the
CONTACT_USERNAME / CONTACT_PASSWORD environment variables.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Contact.APIKey == "" {
		return fmt.Errorf("contact.api_key is required")
	}

	ctx := context.Background()
	fmt.Println("Logging in to Contact Energy...")
	client, err := loginWithCredentials(ctx, cfg)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	// Always re-resolve after a login; the saved IDs may belong to a different user
	if err := client.ResolveAccount(ctx); err != nil {
		return fmt.Errorf("resolving account: %w", err)
	}

	if err := persistSession(client); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("✓ Logged in (account %s, contract %s), token saved to %s\n", client.AccountID(), client.ContractID(), getConfigPath())
	return nil
}
