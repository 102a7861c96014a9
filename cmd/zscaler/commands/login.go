package commands

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/fivetwenty-io/zscaler/internal/constants"
	"github.com/fivetwenty-io/zscaler/pkg/zsclient"
	"github.com/fivetwenty-io/zscaler/pkg/zsconfig"
)

// NewLoginCommand creates the login command
func NewLoginCommand() *cobra.Command {
	var (
		clientID     string
		clientSecret string
		customerID   string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save credentials",
		Long:  "Verify client credentials against the selected cloud and save them to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}

			if clientID != "" {
				config.ClientID = clientID
			}

			if customerID != "" {
				config.CustomerID = customerID
			}

			if clientSecret != "" {
				config.ClientSecret = clientSecret
			}

			if config.ClientSecret == "" {
				config.ClientSecret, err = promptSecret()
				if err != nil {
					return err
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.DefaultLoginTimeout)
			defer cancel()

			client, err := zsclient.New(ctx, config)
			if err != nil {
				return err
			}

			defer func() { _ = client.Close() }()

			configFile := viper.GetString(KeyConfig)

			err = zsconfig.Save(configFile, config)
			if err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed in to %s (%s) as customer %s\n", client.Cloud(), client.BaseURL(), client.CustomerID())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Credentials saved to %s\n", configFile)

			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "API client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "API client secret (prompted when omitted)")
	cmd.Flags().StringVar(&customerID, "customer-id", "", "customer (tenant) ID")

	return cmd
}

func promptSecret() (string, error) {
	fd := int(syscall.Stdin)

	if !term.IsTerminal(fd) {
		return "", constants.ErrSecretPromptNoTTY
	}

	_, _ = fmt.Fprint(os.Stderr, "Client secret: ")

	secret, err := term.ReadPassword(fd)

	_, _ = fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("failed to read client secret: %w", err)
	}

	return string(secret), nil
}
