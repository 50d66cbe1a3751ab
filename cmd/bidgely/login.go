package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgoulah/bidgely/internal/utility"
)

var (
	loginUtility   string
	loginUsername  string
	loginPassword  string
	loginAccountID string
	loginSave      bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify credentials against the utility portal",
	Long: `Logs in through the configured utility and prints the usage-service user id.
Flags override the config file; with --save they are written back to it.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginUtility, "utility", "", "utility id or name (see 'bidgely utilities')")
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "portal username")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "portal password (may be ${ENV_VAR})")
	loginCmd.Flags().StringVar(&loginAccountID, "account-id", "", "utility account number")
	loginCmd.Flags().BoolVar(&loginSave, "save", false, "save the flags to the config file after a successful login")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if loginUtility != "" {
		u, err := utility.Resolve(loginUtility)
		if err != nil {
			return err
		}
		cfg.Utility = u.ID()
	}
	if loginUsername != "" {
		cfg.Username = loginUsername
	}
	if loginPassword != "" {
		cfg.Password = loginPassword
	}
	if loginAccountID != "" {
		cfg.AccountID = loginAccountID
	}

	client, err := newClient(cfg, nil)
	if err != nil {
		return err
	}

	fmt.Printf("Logging in to %s as %s...\n", client.Utility().Name(), cfg.Username)
	if err := client.Login(cmd.Context()); err != nil {
		return err
	}
	fmt.Printf("✓ Logged in, user id %s\n", client.UserID())

	if loginSave {
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Printf("✓ Credentials saved to %s\n", getConfigPath())
	}
	return nil
}
