package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/timmy/tally/internal/domain"
	"github.com/timmy/tally/internal/service"
	"github.com/timmy/tally/internal/tabular"
)

func newTemplateCmd() *cobra.Command {
	var recordType, format, out string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the upload template for a record type",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, ok := domain.ParseRecordType(recordType)
			if !ok {
				return fmt.Errorf("template: unknown record type %q", recordType)
			}
			f, ok := tabular.ParseFormat(format)
			if !ok {
				return fmt.Errorf("template: unknown format %q", format)
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				file, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("template: %w", err)
				}
				defer file.Close()
				w = file
			}
			return service.RenderTemplate(w, rt, f)
		},
	}

	cmd.Flags().StringVarP(&recordType, "type", "t", "", "record type: constituency or center")
	cmd.Flags().StringVar(&format, "format", "csv", "csv or excel")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	cmd.MarkFlagRequired("type")
	return cmd
}
