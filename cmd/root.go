// Package cmd defines the registrar command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registrar",
		Short: "Bulk sale-session registration bot.",
		Long: `registrar automates bulk registration of attendees into time-slotted
sales sessions on a captcha-gated web form. Registrant rows arrive as a
spreadsheet over Telegram; sale days are scraped from the form and each
claimed day runs in its own worker.`,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env vars with prefix REGISTRAR otherwise)")
	cmd.AddCommand(newRunCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
