package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"loom/internal/api"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	var page string
	var user string
	var inputPath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a campaign run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			req := api.StartRequest{Page: page, UserID: user}
			if inputPath != "" {
				data, err := os.ReadFile(inputPath)
				if err != nil {
					return fmt.Errorf("read input file: %w", err)
				}
				if err := json.Unmarshal(data, &req); err != nil {
					return fmt.Errorf("parse input file: %w", err)
				}
				if page != "" {
					req.Page = page
				}
				if user != "" {
					req.UserID = user
				}
			}

			client := newAPIClient(cfg)
			var resp api.StartResponse
			if err := client.postJSON("/api/campaign/start", req, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run started\n  runId:  %s\n  prefix: %s\n", resp.RunID, resp.Prefix)
			return nil
		},
	}

	cmd.Flags().StringVar(&page, "page", "", "Campaign page type")
	cmd.Flags().StringVar(&user, "user", "", "Owning user id")
	cmd.Flags().StringVar(&inputPath, "input", "", "JSON file with competitors, sources, and flags")
	return cmd
}
