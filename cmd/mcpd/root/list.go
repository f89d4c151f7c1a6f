package root

import (
	"github.com/spf13/cobra"

	"mcpd/pkg/app"
)

var listFormat string

var listToolsCmd = &cobra.Command{
	Use:   "list-tools",
	Short: "List all available tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := app.ParseFormat(listFormat)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		return a.PrintTools(cmd.OutOrStdout(), format)
	},
}

var listResourcesCmd = &cobra.Command{
	Use:   "list-resources",
	Short: "List all available resources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := app.ParseFormat(listFormat)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		return a.PrintResources(cmd.OutOrStdout(), format)
	},
}

func init() {
	rootCmd.AddCommand(listToolsCmd, listResourcesCmd)
	for _, c := range []*cobra.Command{listToolsCmd, listResourcesCmd} {
		c.Flags().StringVarP(&listFormat, "format", "f", "text", "Output format: text, markdown or json")
	}
}
