package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"loom/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the durable queues",
	}
	cmd.AddCommand(newQueueListCommand(ctx))
	cmd.AddCommand(newQueueDeadCommand(ctx))
	cmd.AddCommand(newQueueClearCommand(ctx))
	return cmd
}

// queue subcommands open the store directly instead of going through the
// daemon API; WAL mode and the busy timeout make that safe alongside a
// running loomd.
func openStore(ctx *commandContext) (*queue.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return queue.Open(cfg)
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show per-queue message counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			names, err := store.Queues(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				stats, err := store.QueueStats(cmd.Context(), name)
				if err != nil {
					return err
				}
				rows = append(rows, []string{
					name,
					strconv.Itoa(stats.Ready),
					strconv.Itoa(stats.Leased),
					strconv.Itoa(stats.Done),
					strconv.Itoa(stats.Dead),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Queue", "Ready", "Leased", "Done", "Dead"}, rows))
			return nil
		},
	}
}

func newQueueDeadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dead <queue>",
		Short: "Show dead messages for a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			dead, err := store.Dead(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(dead))
			for _, delivery := range dead {
				rows = append(rows, []string{
					strconv.FormatInt(delivery.ID, 10),
					strconv.Itoa(delivery.DeliveryCount),
					delivery.EnqueuedAt.Format("2006-01-02 15:04:05"),
					delivery.LastError,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Deliveries", "Enqueued", "Last Error"}, rows))
			return nil
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var purgeDoneOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			var removed int64
			if purgeDoneOnly {
				removed, err = store.PurgeDone(cmd.Context())
			} else {
				removed, err = store.Clear(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d messages\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&purgeDoneOnly, "done", false, "Only remove completed messages")
	return cmd
}
