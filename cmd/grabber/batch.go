package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/grabber/internal/batch"
	"github.com/italolelis/grabber/internal/download"
	"github.com/italolelis/grabber/internal/logctx"
	"github.com/spf13/cobra"
)

func newBatchCmd(a *app) *cobra.Command {
	var flags taskFlags

	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Download every \"URL [DEST]\" line of FILE in parallel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.withLogger(cmd.Context())
			logger := logctx.LoggerFromContext(ctx)

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open download list: %w", err)
			}
			defer f.Close()

			entries, err := batch.ParseList(f, a.cfg.TargetDir)
			if err != nil {
				return err
			}

			// parallel status lines would overwrite each other
			flags.quiet = true

			tasks := make([]*download.Task, 0, len(entries))

			for _, e := range entries {
				task, err := a.newTask(ctx, e.Source, e.Destination, flags)
				if err != nil {
					return err
				}

				tasks = append(tasks, task)
			}

			runner, err := a.runner()
			if err != nil {
				return err
			}

			logger.Info("starting batch", "tasks", len(tasks), "max_parallel", a.cfg.MaxParallel)

			var results batch.Collector

			runErr := batch.New(runner, a.cfg.MaxParallel).Run(ctx, tasks, &results)

			summary := results.Summary()
			logger.Info("batch finished",
				"completed", summary.Completed,
				"skipped", summary.Skipped,
				"failed", summary.Failed,
				"downloaded", humanize.Bytes(uint64(summary.Bytes)),
			)

			if runErr != nil {
				return runErr
			}

			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d downloads failed", summary.Failed, len(tasks))
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "download even when the destination already matches")
	cmd.Flags().StringVar(&flags.referer, "referer", "", "Referer header (defaults to each URL)")
	cmd.Flags().StringArrayVarP(&flags.headers, "header", "H", nil, "extra request header as Key:Value, repeatable")

	return cmd
}
