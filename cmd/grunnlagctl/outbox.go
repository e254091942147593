package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"grunnlag/internal/app"
)

func newOutboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Show outbox depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app.App) error {
				if a.Outbox == nil {
					return errors.New("outbox is not enabled (set OUTBOX_ENABLED=true)")
				}
				sum, err := a.Outbox.Summary(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "pending:   %d\n", sum.Pending)
				fmt.Fprintf(out, "retrying:  %d\n", sum.Failed)
				fmt.Fprintf(out, "dead:      %d\n", sum.Dead)
				fmt.Fprintf(out, "processed: %d\n", sum.Processed)
				if sum.OldestPendingAt != nil {
					fmt.Fprintf(out, "oldest:    %s (%s ago)\n",
						sum.OldestPendingAt.Format(time.RFC3339),
						time.Since(*sum.OldestPendingAt).Truncate(time.Second))
				}
				return nil
			})
		},
	}
	cmd.AddCommand(newOutboxRequeueCmd())
	return cmd
}

func newOutboxRequeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue",
		Short: "Retry dead-lettered outbox entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app.App) error {
				if a.Outbox == nil {
					return errors.New("outbox is not enabled (set OUTBOX_ENABLED=true)")
				}
				n, err := a.Outbox.Requeue(ctx, time.Now().UTC())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d entries\n", n)
				return nil
			})
		},
	}
}
