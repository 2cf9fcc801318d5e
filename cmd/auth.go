package cmd

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"anywhere-shell/pkg/client"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
}

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Verify and save account credentials",
	Long: `Log in with username and password, check the API token against the
consoles API and save the account to the config file.

The password is only used to verify the login; it is not written to disk.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Use global configuration loaded by PersistentPreRunE
		cfg := GetConfig()

		if len(args) > 0 {
			cfg.Account.Username = args[0]
		}
		if cfg.Account.Username == "" {
			fmt.Print("Username: ")
			fmt.Scanln(&cfg.Account.Username)
		}

		password := loginPassword
		if password == "" {
			var err error
			password, err = readSecret("Password: ")
			if err != nil {
				return err
			}
		}

		if cfg.Account.APIToken == "" {
			token, err := readSecret("API token: ")
			if err != nil {
				return err
			}
			cfg.Account.APIToken = token
		}

		browser, err := client.New(cfg)
		if err != nil {
			return err
		}
		if err := browser.Login(ctx, password); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
		consoles, err := browser.ListConsoles(ctx)
		if err != nil {
			return fmt.Errorf("API token check failed: %w", err)
		}

		// Keep the password out of the saved file.
		cfg.Account.Password = ""
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Printf("Authenticated as %s (%d consoles). Account saved to config.\n", cfg.Account.Username, len(consoles))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the configured account",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Use global configuration loaded by PersistentPreRunE
		cfg := GetConfig()

		if cfg.Account.Username == "" {
			fmt.Println("No account configured. Run 'anywhere-shell auth login' to set one up.")
			return nil
		}

		fmt.Printf("Account:   %s\n", cfg.Account.Username)
		fmt.Printf("Service:   %s\n", cfg.Service.Origin)
		fmt.Printf("API token: %s\n", maskSecret(cfg.Account.APIToken))
		if cfg.Account.Password != "" {
			fmt.Println("Password:  set in config or environment")
		} else {
			fmt.Println("Password:  prompted at connect time")
		}
		return nil
	},
}

// readSecret prompts on stdout and reads a line without echo.
func readSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // New line after hidden input
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(strings.TrimSuffix(prompt, ": ")), err)
	}
	return string(secret), nil
}

// maskSecret shows only the last four characters of a secret.
func maskSecret(s string) string {
	switch {
	case s == "":
		return "not set"
	case len(s) <= 4:
		return strings.Repeat("*", len(s))
	default:
		return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
	}
}

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password for authentication (for non-interactive use)")
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(authCmd)
}
