package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "quince",
		Short:         "quince is a minimal QUIC client and server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newClientCmd())
	root.AddCommand(newServerCmd())
	return root
}
