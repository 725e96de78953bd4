package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	httpcmd "github.com/Alijeyrad/wellness_intake/cmd/http"
	systemcmd "github.com/Alijeyrad/wellness_intake/cmd/system"
)

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "wellness-intake",
	Short: "Corporate wellness booking intake service.",
	Long: `wellness-intake runs the booking intake flow for corporate health checks.
HR users sign in, describe the employees and dependents to book, pass a
captcha and submit the booking to the company portal.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global config flag, available for all commands.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	// Attach top-level command trees.
	rootCmd.AddCommand(systemcmd.NewSystemCommand())
	rootCmd.AddCommand(httpcmd.NewHTTPCommand())
}
