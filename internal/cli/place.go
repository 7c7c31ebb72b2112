package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	ws "bidding-system/internal/infrastructure/websocket"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type PlaceOptions struct {
	*RootOptions
	SubmissionID string
}

func NewPlaceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlaceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "place <item-id> <amount>",
		Short: "Propose a new price for an item",
		Long: `Propose a new price for an item and print the outcome.

The amount must be exactly the current price plus the configured increment.
Resending with the same --submission-id returns the original outcome.

Example:
  bidctl place lamp-1 110 --bidder alice`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var amount int64
			if _, err := fmt.Sscan(args[1], &amount); err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			return placeBid(cmd.Context(), opts, args[0], amount, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.SubmissionID, "submission-id", "", "idempotency key (random when empty)")

	return cmd
}

func placeBid(ctx context.Context, opts *PlaceOptions, itemID string, amount int64, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	client, err := Dial(ctx, opts.Server, opts.Bidder)
	if err != nil {
		return err
	}
	defer client.Close()

	submissionID := opts.SubmissionID
	if submissionID == "" {
		submissionID = uuid.NewString()
	}

	ack, err := client.PlaceBid(ctx, itemID, amount, opts.Bidder, submissionID)
	if err != nil {
		return fmt.Errorf("place bid: %w", err)
	}

	if err := printAck(out, opts.Format, ack); err != nil {
		return err
	}
	if !ack.Success {
		return ErrRejected
	}
	return nil
}

func printAck(out io.Writer, format string, ack *ws.BidAck) error {
	if format == "json" {
		return json.NewEncoder(out).Encode(ack)
	}

	if ack.Success {
		_, err := fmt.Fprintf(out, "accepted item=%s sequence=%d\n", ack.ItemID, ack.SequenceNumber)
		return err
	}
	line := fmt.Sprintf("rejected item=%s error=%s", ack.ItemID, ack.Error)
	if ack.Reason != "" {
		line += fmt.Sprintf(" reason=%s expected=%d", ack.Reason, ack.ExpectedAmount)
	}
	_, err := fmt.Fprintln(out, line)
	return err
}
