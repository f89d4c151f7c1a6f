package root

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mcpd/internal/config"
	"mcpd/pkg/app"
)

var (
	flagConfigPath string
	v              *viper.Viper
)

// rootCmd defines the base command for mcpd
var rootCmd = &cobra.Command{
	Use:           "mcpd",
	Short:         "Minimal Model Context Protocol server over TCP",
	Long:          "mcpd serves newline-delimited JSON-RPC 2.0 over TCP, exposing a fixed set of tools and resources. Configure it in ~/.config/mcpd/mcpd.toml or with MCPD_* environment variables.",
	Version:       app.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the Cobra root command.
func Execute() {
	// Load environment from .env if present and configure logger
	_ = godotenv.Load()
	logFile := config.ConfigureLogging()
	v = config.New()

	err := rootCmd.Execute()
	_ = logFile.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp loads the configuration and builds the application.
func newApp() (*app.App, error) {
	cfg, err := config.Load(v, flagConfigPath)
	if err != nil {
		return nil, err
	}
	return app.New(cfg)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Path to config file (default ~/.config/mcpd/mcpd.toml)")
}
