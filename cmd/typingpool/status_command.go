package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathanpberger/typingpool/internal/service"
	"github.com/jonathanpberger/typingpool/internal/storage"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [PROJECT]",
		Short: "Show transcription progress",
		Long:  "Without a project, summarizes every project. With one, lists its chunks.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := service.NewStatusService(ctx.finder(), nil)
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				summaries, err := status.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(summaries) == 0 {
					fmt.Fprintf(out, "No projects in %s\n", ctx.config.Transcripts)
					return nil
				}
				rows := make([][]string, 0, len(summaries))
				for _, s := range summaries {
					rows = append(rows, []string{s.Name, itoa(s.Total), itoa(s.Complete), itoa(s.Outstanding), itoa(s.Needed), yesNo(s.AudioOnline)})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Project", "Total", "Complete", "Outstanding", "Needed", "Audio online"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			}

			p, err := ctx.findProject(args[0])
			if err != nil {
				return err
			}
			detail := service.Detail(p, time.Now())
			rows := make([][]string, 0, len(detail.Items))
			for _, item := range detail.Items {
				expires := time.Time{}
				if item.JobExpiresAt != nil {
					expires = *item.JobExpiresAt
				}
				job := item.RemoteJobID
				if job == "" {
					job = "-"
				}
				rows = append(rows, []string{storage.URLBaseName(item.AudioURL), item.State, job, formatTime(expires)})
			}
			fmt.Fprintf(out, "%s (%s): %d of %d complete, %d outstanding\n",
				detail.Name, detail.ID, detail.Complete, detail.Total, detail.Outstanding)
			fmt.Fprintln(out, renderTable([]string{"Chunk", "State", "Job", "Expires"}, rows, nil))
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
