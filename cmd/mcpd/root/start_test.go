package root

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpd/internal/config"
)

func TestBindFlags(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MCPD_ADDRESS", "127.0.0.1:7000")
	t.Setenv("MCPD_MAX_LINE_BYTES", "2048")

	fs := pflag.NewFlagSet("start", pflag.ContinueOnError)
	fs.String("address", config.DefaultAddress, "")
	fs.Int("max-line-bytes", config.DefaultMaxLineSize, "")
	require.NoError(t, fs.Parse([]string{"--address", "127.0.0.1:9999"}))

	vv := config.New()
	require.NoError(t, bindFlags(vv, fs, map[string]string{
		"address":        "address",
		"max_line_bytes": "max-line-bytes",
	}))

	cfg, err := config.Load(vv, "")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Address, "a set flag wins over the environment")
	assert.Equal(t, 2048, cfg.MaxLineBytes, "an unset flag does not mask the environment")
}

func TestBindFlagsUnknown(t *testing.T) {
	fs := pflag.NewFlagSet("start", pflag.ContinueOnError)
	assert.Error(t, bindFlags(config.New(), fs, map[string]string{"address": "address"}))
}

func TestCommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"start", "stdio", "list-tools", "list-resources", "config"})
}
