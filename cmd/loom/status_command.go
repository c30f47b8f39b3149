package main

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/spf13/cobra"

	"loom/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <prefix>",
		Short: "Show the status document for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)
			var resp api.StatusResponse
			query := url.Values{"prefix": {args[0]}}
			if err := client.getJSON("/api/campaign/status?"+query.Encode(), &resp); err != nil {
				return err
			}

			doc := resp.Status
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s\n  state:     %s\n  updatedAt: %s\n", doc.RunID, doc.State, doc.UpdatedAt.Format("2006-01-02 15:04:05 MST"))

			if len(doc.Markers) > 0 {
				names := make([]string, 0, len(doc.Markers))
				for name, set := range doc.Markers {
					if set {
						names = append(names, name)
					}
				}
				sort.Strings(names)
				fmt.Fprintln(out, "  markers:")
				for _, name := range names {
					fmt.Fprintf(out, "    %s\n", name)
				}
			}

			if len(doc.History) > 0 {
				rows := make([][]string, 0, len(doc.History))
				for _, event := range doc.History {
					note := event.Note
					if event.Error != "" {
						note = "error: " + event.Error
					}
					rows = append(rows, []string{
						event.At.Format("15:04:05"),
						event.Phase,
						event.Op,
						note,
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Time", "Phase", "Op", "Note"}, rows))
			}
			return nil
		},
	}
	return cmd
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List known campaign runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)
			var resp api.RunsResponse
			if err := client.getJSON("/api/runs", &resp); err != nil {
				return err
			}

			rows := make([][]string, 0, len(resp.Runs))
			for _, run := range resp.Runs {
				rows = append(rows, []string{
					run.RunID,
					run.Page,
					run.UserID,
					run.CreatedAt.Format("2006-01-02 15:04"),
					run.Prefix,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Run", "Page", "User", "Created", "Prefix"}, rows))
			return nil
		},
	}
	return cmd
}
