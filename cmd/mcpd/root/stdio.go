package root

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

type stdio struct {
	io.Reader
	io.Writer
}

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve a single MCP session on stdin/stdout",
	Long:  "Serve one peer over stdin/stdout with the same framing and dispatch as a TCP connection. Logs go to stderr.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		return a.ServeConn(cmd.Context(), stdio{Reader: os.Stdin, Writer: os.Stdout})
	},
}

func init() {
	rootCmd.AddCommand(stdioCmd)
}
