package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCollectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Approve finished jobs and merge their transcriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closeCache, err := ctx.engine(cmd.Context(), engineOptions{})
			if err != nil {
				return err
			}
			defer closeCache()

			report, err := engine.Collect(cmd.Context())
			if report == nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(report.Projects) > 0 {
				rows := make([][]string, 0, len(report.Projects))
				for _, pc := range report.Projects {
					rows = append(rows, []string{pc.Name, itoa(pc.Collected), itoa(len(pc.Transcript)), pc.TranscriptPath})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Project", "Collected", "Transcribed", "Transcript"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
				))
			}
			switch {
			case report.Collected() > 0:
				fmt.Fprintf(out, "Collected %d transcriptions\n", report.Collected())
			case err == nil:
				fmt.Fprintln(out, "No new transcriptions")
			}
			if report.Deferred > 0 {
				fmt.Fprintf(out, "%d results belong to no local project and were left for later\n", report.Deferred)
			}
			return err
		},
	}
}
