package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/zscaler/internal/constants"
	"github.com/fivetwenty-io/zscaler/pkg/zscaler"
)

// ConfigView is the displayed configuration. The client secret is masked.
type ConfigView struct {
	ConfigFile   string `json:"config_file"   yaml:"config_file"`
	ClientID     string `json:"client_id"     yaml:"client_id"`
	ClientSecret string `json:"client_secret" yaml:"client_secret"`
	CustomerID   string `json:"customer_id"   yaml:"customer_id"`
	Cloud        string `json:"cloud"         yaml:"cloud"`
	BaseURL      string `json:"base_url"      yaml:"base_url"`
	CacheType    string `json:"cache_type"    yaml:"cache_type"`
	CacheEnabled bool   `json:"cache_enabled" yaml:"cache_enabled"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Show the effective configuration and where it is stored",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the configuration merged from the config file, environment and flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}

			view := newConfigView(viper.GetString(KeyConfig), config)

			return writeOutput(cmd.OutOrStdout(), view, func(out io.Writer) error {
				return displayConfigTable(out, view)
			})
		},
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), viper.GetString(KeyConfig))

			return err
		},
	}
}

func newConfigView(configFile string, config *zscaler.Config) ConfigView {
	view := ConfigView{
		ConfigFile:   configFile,
		ClientID:     config.ClientID,
		CustomerID:   config.CustomerID,
		Cloud:        config.Cloud.String(),
		CacheType:    string(config.Cache.Type),
		CacheEnabled: !config.Cache.Disabled,
	}

	if config.ClientSecret != "" {
		view.ClientSecret = constants.MaskedSecret
	}

	baseURL, err := config.ResolveBaseURL()
	if err == nil {
		view.BaseURL = baseURL
	}

	return view
}

func displayConfigTable(out io.Writer, view ConfigView) error {
	table := tablewriter.NewWriter(out)
	table.Header("Property", "Value")

	_ = table.Append("Config File", view.ConfigFile)
	_ = table.Append("Client ID", view.ClientID)
	_ = table.Append("Client Secret", view.ClientSecret)
	_ = table.Append("Customer ID", view.CustomerID)
	_ = table.Append("Cloud", view.Cloud)
	_ = table.Append("Base URL", view.BaseURL)
	_ = table.Append("Cache", view.CacheType)
	_ = table.Append("Cache Enabled", strconv.FormatBool(view.CacheEnabled))

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}
