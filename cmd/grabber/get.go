package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/grabber/internal/batch"
	"github.com/italolelis/grabber/internal/logctx"
	"github.com/spf13/cobra"
)

func newGetCmd(a *app) *cobra.Command {
	var flags taskFlags

	cmd := &cobra.Command{
		Use:   "get URL [DEST]",
		Short: "Download a single resource, resuming any partial copy",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.withLogger(cmd.Context())
			logger := logctx.LoggerFromContext(ctx)

			dest := ""
			if len(args) == 2 {
				dest = args[1]
			}

			dest = batch.Destination(args[0], dest, a.cfg.TargetDir)

			task, err := a.newTask(ctx, args[0], dest, flags)
			if err != nil {
				return err
			}

			runner, err := a.runner()
			if err != nil {
				return err
			}

			start := time.Now()

			outcome, err := runner.Run(ctx, task)
			if err != nil {
				return err
			}

			if !flags.quiet {
				fmt.Fprintln(cmd.OutOrStdout())
			}

			logger.Info("done",
				"outcome", outcome.String(),
				"destination", task.Destination,
				"downloaded", humanize.Bytes(uint64(task.Transferred())),
				"resumed_from", humanize.Bytes(uint64(task.Resumed())),
				"elapsed", elapsed(start),
			)

			return nil
		},
	}

	addTaskFlags(cmd, &flags)

	return cmd
}

func addTaskFlags(cmd *cobra.Command, flags *taskFlags) {
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "download even when the destination already matches")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "log progress instead of drawing a status line")
	cmd.Flags().StringVar(&flags.referer, "referer", "", "Referer header (defaults to the URL)")
	cmd.Flags().StringArrayVarP(&flags.headers, "header", "H", nil, "extra request header as Key:Value, repeatable")
}
