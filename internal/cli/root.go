// Package cli implements bidctl, a command line bidder for the bidding
// service.
package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// ErrRejected is returned by commands whose proposal was not accepted, after
// the outcome has been printed.
var ErrRejected = errors.New("bid rejected")

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server  string
	Bidder  string
	Timeout time.Duration
	Format  string // "json" | "text"
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "bidctl",
		Short: "Place and watch bids on a bidding service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", "ws://localhost:5000/ws/bids", "bidding websocket url")
	cmd.PersistentFlags().StringVar(&opts.Bidder, "bidder", "", "bidder id")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "how long to wait for a reply")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewPlaceCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewItemCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
