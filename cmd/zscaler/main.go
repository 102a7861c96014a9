package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/zscaler/cmd/zscaler/commands"
	"github.com/fivetwenty-io/zscaler/internal/constants"
	"github.com/fivetwenty-io/zscaler/pkg/zsconfig"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "zscaler",
	Short: "Zscaler API CLI",
	Long: `A command-line interface for the Zscaler management APIs.

Credentials are read from the config file (default $HOME/.zscaler/config.yml)
and ZSCALER_* environment variables; 'zscaler login' saves them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.zscaler/config.yml)")
	rootCmd.PersistentFlags().String("cloud", "", "cloud environment, e.g. PRODUCTION or BETA")
	rootCmd.PersistentFlags().String("base-url", "", "API base URL, overriding the cloud")
	rootCmd.PersistentFlags().StringP("output", "o", constants.FormatTable, "output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log requests to stderr")
	rootCmd.PersistentFlags().Bool("no-cache", false, "disable the response cache")

	// Bind flags to viper
	_ = viper.BindPFlag(commands.KeyConfig, rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag(zsconfig.KeyCloud, rootCmd.PersistentFlags().Lookup("cloud"))
	_ = viper.BindPFlag(zsconfig.KeyBaseURL, rootCmd.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag(commands.KeyOutput, rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag(commands.KeyVerbose, rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag(commands.KeyNoCache, rootCmd.PersistentFlags().Lookup("no-cache"))

	// Add commands
	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, date))
	rootCmd.AddCommand(commands.NewCloudsCommand())
	rootCmd.AddCommand(commands.NewLoginCommand())
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(commands.NewListCommand())
	rootCmd.AddCommand(commands.NewGetCommand())
	rootCmd.AddCommand(commands.NewRequestCommand())
}

func initConfig() {
	// Read in environment variables that match
	viper.SetEnvPrefix(constants.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if viper.GetString(commands.KeyConfig) == "" {
		viper.Set(commands.KeyConfig, zsconfig.DefaultConfigFile())
	}

	if viper.GetBool(commands.KeyVerbose) {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.GetString(commands.KeyConfig))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
