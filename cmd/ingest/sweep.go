package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/timmy/tally/internal/sweeper"
)

func newSweepCmd() *cobra.Command {
	var recoverJobs bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove stale staged files once",
		Long: `Removes staged files older than sweeper.max_age.

With --recover, jobs left uploaded or processing are marked failed first.
Only use --recover while no API server is running against the same database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			sw := sweeper.New(e.cfg.Sweeper, e.cfg.Upload.StagingDir, e.jobs, nil)
			if recoverJobs {
				n, err := sw.RecoverInterrupted(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "recovered %d interrupted jobs\n", n)
			}

			n, err := sw.SweepStaging(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d stale staged files\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&recoverJobs, "recover", false, "mark interrupted jobs as failed")
	return cmd
}
