package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"anywhere-shell/pkg/config"
)

var (
	cfgFile string
	cfg     *config.Config

	verbose bool
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "anywhere-shell",
	Short: "Interactive shell for cloud-hosted consoles",
	Long: `A command-line client that attaches your terminal to a console hosted on
PythonAnywhere (or a compatible service). It logs in, finds or creates a
console through the API and streams it over a WebSocket until you type 'bye'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			setupLogging(verbose, debug, "")
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		setupLogging(verbose, debug, cfg.Log.Level)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.anywhere-shell/config.yaml)")
	rootCmd.PersistentFlags().String("username", "", "account username")
	rootCmd.PersistentFlags().String("api-token", "", "API token for the consoles API")
	rootCmd.PersistentFlags().String("origin", "", "service origin (default "+config.DefaultOrigin+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging (includes raw frames)")

	viper.BindPFlag("account.username", rootCmd.PersistentFlags().Lookup("username"))
	viper.BindPFlag("account.api_token", rootCmd.PersistentFlags().Lookup("api-token"))
	viper.BindPFlag("service.origin", rootCmd.PersistentFlags().Lookup("origin"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func GetConfig() *config.Config {
	return cfg
}
