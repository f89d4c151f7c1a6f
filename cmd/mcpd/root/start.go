package root

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"mcpd/internal/config"
)

// startFlags maps config keys onto the start command's flags.
var startFlags = map[string]string{
	"address":          "address",
	"announce":         "announce",
	"max_line_bytes":   "max-line-bytes",
	"metrics_address":  "metrics-address",
	"rate_limit.rps":   "rate-limit-rps",
	"rate_limit.burst": "rate-limit-burst",
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the MCP server",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(v, cmd.Flags(), startFlags)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		logrus.WithField("address", v.GetString("address")).Info("starting MCP server")
		return a.Run(cmd.Context())
	},
}

// bindFlags makes explicitly set flags take precedence over env and file
// values for the given keys.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(startCmd)

	f := startCmd.Flags()
	f.StringP("address", "a", config.DefaultAddress, "Address to listen on")
	f.Bool("announce", true, "Send an initialize notification when a peer connects")
	f.Int("max-line-bytes", config.DefaultMaxLineSize, "Longest accepted request line in bytes (0 disables the limit)")
	f.String("metrics-address", "", "Serve Prometheus metrics on this address")
	f.Float64("rate-limit-rps", 0, "Requests per second allowed per connection (0 disables limiting)")
	f.Int("rate-limit-burst", 1, "Burst size for the per-connection rate limit")
}
