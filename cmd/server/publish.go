package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var publishDueCmd = &cobra.Command{
	Use:   "publish-due",
	Short: "Process one batch of due posts and print the summary",
	Long:  "Runs the same batch the scheduler runs every minute, once, and exits.",
	RunE:  runPublishDue,
}

func init() {
	rootCmd.AddCommand(publishDueCmd)
}

func runPublishDue(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := cmd.Context()
	if cfg.Scheduler.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Scheduler.RunTimeout)
		defer cancel()
	}

	summary, err := p.publisher.RunDue(ctx)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
