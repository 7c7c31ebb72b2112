package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func NewItemCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "item <item-id>",
		Short:         "Show an item's committed price and version",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, rootOpts.Timeout)
			defer cancel()

			client, err := Dial(ctx, rootOpts.Server, rootOpts.Bidder)
			if err != nil {
				return err
			}
			defer client.Close()

			state, err := client.GetItem(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get item: %w", err)
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return json.NewEncoder(out).Encode(state)
			}
			if state.Error != "" {
				_, err = fmt.Fprintf(out, "item=%s error=%s\n", state.ItemID, state.Error)
				return err
			}
			_, err = fmt.Fprintf(out, "item=%s price=%d version=%d\n", state.ItemID, state.CurrentPrice, state.Version)
			return err
		},
	}

	return cmd
}
