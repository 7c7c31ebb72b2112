package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	ws "bidding-system/internal/infrastructure/websocket"

	"github.com/spf13/cobra"
)

func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "watch [item-id]",
		Short:         "Stream accepted bids until interrupted",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID := ""
			if len(args) == 1 {
				itemID = args[0]
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return watchBids(ctx, rootOpts, itemID, cmd.OutOrStdout())
		},
	}

	return cmd
}

func watchBids(ctx context.Context, opts *RootOptions, itemID string, out io.Writer) error {
	dialCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	client, err := Dial(dialCtx, opts.Server, opts.Bidder)
	cancel()
	if err != nil {
		return err
	}
	defer client.Close()

	return client.Watch(ctx, itemID, func(update ws.BidUpdated) error {
		if opts.Format == "json" {
			return json.NewEncoder(out).Encode(update)
		}
		_, err := fmt.Fprintf(out, "item=%s price=%d bidder=%s sequence=%d\n",
			update.ItemID, update.NewBid, update.Bidder, update.SequenceNumber)
		return err
	})
}
