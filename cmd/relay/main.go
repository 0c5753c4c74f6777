// Command relay runs the webmetro-relay HTTP server: broadcasters PUT or
// POST an EBML/WebM byte stream to a named channel, listeners GET it back
// out, re-chunked into an independently-playable stream.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/webmetro/relay/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "relay",
		Short: "A relay server for live WebM streams",
	}

	relayCmd := &cobra.Command{
		Use:   "relay <listen-address>",
		Short: "Hosts an HTTP-based relay server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg.ListenAddress = args[0]
			return runServe(cmd.Context(), cfg)
		},
	}
	config.BindFlags(relayCmd.Flags())

	root.AddCommand(relayCmd)
	return root
}
