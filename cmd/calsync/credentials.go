package main

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"calsync/internal/config"
	"calsync/internal/credentials"
)

func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage provider credentials",
		Long: `Securely manage credentials using the system keyring.

Credentials can be stored in three ways (in priority order):
  1. System keyring (most secure) - recommended
  2. Environment variables (good for CI/CD)
  3. Config file URL (legacy - least secure)

Examples:
  # Store an API token in the keyring (interactive prompt)
  calsync credentials set gcal token --prompt

  # Store credentials non-interactively
  calsync credentials set gcal myuser mypassword

  # Check which credential source a provider uses
  calsync credentials get gcal

  # Remove credentials from the keyring
  calsync credentials delete gcal myuser`,
	}

	cmd.AddCommand(newCredentialsSetCmd())
	cmd.AddCommand(newCredentialsGetCmd())
	cmd.AddCommand(newCredentialsDeleteCmd())

	return cmd
}

func envVarHint(providerName string) string {
	upper := strings.ToUpper(strings.ReplaceAll(providerName, "-", "_"))
	return fmt.Sprintf("  export CALSYNC_%s_USERNAME=<username>\n  export CALSYNC_%s_PASSWORD=<password-or-token>", upper, upper)
}

func newCredentialsSetCmd() *cobra.Command {
	var promptPassword bool

	cmd := &cobra.Command{
		Use:   "set <provider> [username] [password]",
		Short: "Store credentials in the system keyring",
		Long: `Store provider credentials securely in the system keyring.

If username is not provided, it will be read from the provider configuration.
If --prompt is specified, the secret is read interactively (recommended).

Examples:
  # Interactive prompt (most secure)
  calsync credentials set gcal token --prompt

  # Non-interactive (less secure - secret visible in shell history)
  calsync credentials set gcal myuser mypassword`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			providerName := args[0]

			cfg := config.GetConfig()
			providerConfig, err := cfg.GetProvider(providerName)
			if err != nil {
				return err
			}

			var username string
			if len(args) >= 2 {
				username = args[1]
			} else if providerConfig.Username != "" {
				username = providerConfig.Username
			} else {
				return fmt.Errorf("username is required (not found in config for provider %q)", providerName)
			}

			var password string
			if promptPassword {
				fmt.Printf("Enter secret for %s@%s: ", username, providerName)
				passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
				fmt.Println()
				if err != nil {
					return fmt.Errorf("failed to read secret: %w", err)
				}
				password = string(passwordBytes)

				if password == "" {
					return fmt.Errorf("secret cannot be empty")
				}
			} else if len(args) >= 3 {
				password = args[2]
			} else {
				return fmt.Errorf("password is required (use --prompt for interactive input)")
			}

			if err := credentials.Set(providerName, username, password); err != nil {
				if !credentials.IsAvailable() {
					return fmt.Errorf("system keyring is not available. Try environment variables instead:\n%s", envVarHint(providerName))
				}
				return err
			}

			fmt.Printf("✓ Credentials stored for %s@%s\n", username, providerName)
			if providerConfig.Username == "" {
				fmt.Printf("\nAdd 'username: %s' to the %s provider config so sync can find them.\n", username, providerName)
			}
			fmt.Printf("Test with: calsync sync %s\n", providerName)

			return nil
		},
	}

	cmd.Flags().BoolVar(&promptPassword, "prompt", false, "Prompt for the secret interactively (recommended)")

	return cmd
}

func newCredentialsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <provider> [username]",
		Short: "Check credential status for a provider",
		Long: `Check which credential source is in use for a provider.

Shows where credentials are found (keyring, environment, or config URL) but
never prints the secret itself.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			providerName := args[0]

			cfg := config.GetConfig()
			providerConfig, err := cfg.GetProvider(providerName)
			if err != nil {
				return err
			}

			username := providerConfig.Username
			if len(args) >= 2 {
				username = args[1]
			}

			resolver := credentials.NewResolver()
			creds, err := resolver.ResolveWithConfig(providerName, username, "", providerConfig.URL)
			if err != nil {
				return err
			}

			switch creds.Source {
			case credentials.SourceKeyring:
				fmt.Printf("✓ Credentials for %s@%s found in system keyring\n", creds.Username, providerName)
			case credentials.SourceEnv:
				fmt.Printf("✓ Credentials for %s found in environment variables\n", providerName)
			case credentials.SourceURL:
				fmt.Printf("⚠ Credentials for %s embedded in the config URL\n", providerName)
				fmt.Println("\nConsider moving them to the keyring:")
				fmt.Printf("  calsync credentials set %s %s --prompt\n", providerName, creds.Username)
			default:
				fmt.Printf("✗ No credentials found for %s\n", providerName)
				fmt.Println("\nStore them with:")
				fmt.Printf("  calsync credentials set %s <username> --prompt\n", providerName)
				fmt.Println("\nOr use environment variables:")
				fmt.Println(envVarHint(providerName))
			}

			return nil
		},
	}
}

func newCredentialsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <provider> [username]",
		Short: "Remove credentials from the system keyring",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			providerName := args[0]

			cfg := config.GetConfig()
			providerConfig, err := cfg.GetProvider(providerName)
			if err != nil {
				return err
			}

			username := providerConfig.Username
			if len(args) >= 2 {
				username = args[1]
			}
			if username == "" {
				return fmt.Errorf("username is required (not found in config for provider %q)", providerName)
			}

			if err := credentials.Delete(providerName, username); err != nil {
				return err
			}

			fmt.Printf("✓ Credentials removed for %s@%s\n", username, providerName)
			return nil
		},
	}
}
