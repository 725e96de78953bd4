package http

import "github.com/spf13/cobra"

func NewHTTPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "http",
		Short: "Booking intake HTTP API",
		Long:  "Serve the booking intake API under /api/v1/intake along with health and metrics endpoints.",
	}

	cmd.AddCommand(NewStartCommand())

	return cmd
}
