package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/timmy/tally/internal/domain"
	"github.com/timmy/tally/internal/logger"
	"github.com/timmy/tally/internal/service"
)

type runOptions struct {
	file         string
	recordType   string
	year         int
	owner        string
	overwrite    bool
	validateOnly bool
	showErrors   bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one upload job to completion",
		Long: `Runs an upload job synchronously and prints its status as JSON.

The file is copied into the staging directory first, so the original is
left in place. The command exits non-zero when the job fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "CSV or XLSX file to load")
	cmd.Flags().StringVarP(&opts.recordType, "type", "t", "", "record type: constituency or center")
	cmd.Flags().IntVarP(&opts.year, "year", "y", 0, "election year of the upload")
	cmd.Flags().StringVar(&opts.owner, "owner", "cli", "user recorded as the job owner")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "overwrite records that already exist")
	cmd.Flags().BoolVar(&opts.validateOnly, "validate-only", false, "classify rows without writing results")
	cmd.Flags().BoolVar(&opts.showErrors, "errors", false, "also print the row error listing")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("year")
	return cmd
}

func runIngest(cmd *cobra.Command, opts runOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.SetComponent(ctx, "ingest")

	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	info, err := os.Stat(opts.file)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	staged, err := stageCopy(e.cfg.Upload.StagingDir, opts.file)
	if err != nil {
		return err
	}

	job, err := e.uploads.CreateJob(ctx, service.CreateJobRequest{
		OwnerID:      opts.owner,
		RecordType:   opts.recordType,
		ElectionYear: strconv.Itoa(opts.year),
		FileName:     opts.file,
		FileSize:     info.Size(),
		Options: domain.JobOptions{
			OverwriteExisting: opts.overwrite,
			ValidateOnly:      opts.validateOnly,
		},
	})
	if err != nil {
		os.Remove(staged)
		return err
	}

	runErr := e.uploads.Run(ctx, job, staged)

	status, err := e.uploads.GetStatus(ctx, job.OwnerID, job.ID)
	if err != nil {
		return err
	}
	if err := writeJSON(cmd.OutOrStdout(), status); err != nil {
		return err
	}
	if opts.showErrors {
		report, err := e.uploads.GetErrors(ctx, job.OwnerID, job.ID)
		if err != nil {
			return err
		}
		if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	}

	if runErr != nil {
		return fmt.Errorf("job %s failed: %w", job.ID, runErr)
	}
	return nil
}

// stageCopy copies src into the staging directory under a fresh name.
func stageCopy(stagingDir, src string) (string, error) {
	if err := os.MkdirAll(stagingDir, 0o750); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.CreateTemp(stagingDir, "ingest-*"+strings.ToLower(filepath.Ext(src)))
	if err != nil {
		return "", fmt.Errorf("stage file: %w", err)
	}
	dst := out.Name()
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("stage file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("stage file: %w", err)
	}
	return dst, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
