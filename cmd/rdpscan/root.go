package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for rdpscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rdpscan",
		Short: "Bulk prober for Remote Desktop Protocol services",
		Long: `rdpscan probes a list of IPv4 endpoints and reports the ones serving
Remote Desktop Protocol.

Each endpoint receives one fixed X.224 connection request carrying an RDP
negotiation request. An endpoint is reported alive when it answers with an
RDP negotiation response, or with a negotiation failure that still proves an
RDP server is listening. No credentials are sent and no TLS is started.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging (one diagnostic line per probe)")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
