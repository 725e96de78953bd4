package system

import "github.com/spf13/cobra"

func NewSystemCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Operational checks and tooling",
	}

	cmd.AddCommand(NewCheckCommand())
	cmd.AddCommand(NewGenDocsCommand())

	return cmd
}
