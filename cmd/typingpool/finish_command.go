package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonathanpberger/typingpool/internal/domain"
	"github.com/jonathanpberger/typingpool/internal/project"
	"github.com/jonathanpberger/typingpool/internal/service"
)

func newFinishCommand(ctx *commandContext) *cobra.Command {
	var dead bool
	var urlAt, idAt string

	cmd := &cobra.Command{
		Use:   "finish [PROJECT | --dead]",
		Short: "Retire remote jobs and hosted files",
		Long: `With a project, deletes every remote job it owns and then its hosted
audio and task pages. Transcriptions stay in the local ledger.

With --dead, deletes jobs across all projects that expired without a
submission or whose submission was rejected, so assign can republish
their chunks.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dead == (len(args) == 1) {
				return errors.New("give either a project or --dead")
			}

			fields := ctx.config.Fields.Identifiers()
			if urlAt != "" {
				fields.AudioURL = urlAt
			}
			if idAt != "" {
				fields.ProjectID = idAt
			}

			engine, closeCache, err := ctx.engine(cmd.Context(), engineOptions{fields: fields, needAssets: !dead})
			if err != nil {
				return err
			}
			defer closeCache()

			out := cmd.OutOrStdout()
			if dead {
				report, err := engine.RetireDead(cmd.Context())
				if report != nil {
					printRetireReport(out, "dead jobs", report)
				}
				return err
			}

			return ctx.withLockedProject(cmd.Context(), args[0], func(p *project.Project) error {
				report, err := engine.RetireProject(cmd.Context(), p)
				if report != nil {
					printRetireReport(out, p.Name(), report)
					if report.AudioRemoved {
						fmt.Fprintf(out, "Removed remote audio and task pages for %s\n", p.Name())
					}
				}
				if domain.IsUnreviewedContent(err) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Some jobs have submissions nobody reviewed yet; run collect and then finish again.")
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&dead, "dead", false, "Retire expired and rejected jobs across all projects")
	cmd.Flags().StringVar(&urlAt, "url-at", "", "Task field holding the audio URL, for jobs published with a custom template")
	cmd.Flags().StringVar(&idAt, "id-at", "", "Task field holding the project id, for jobs published with a custom template")

	return cmd
}

func printRetireReport(out io.Writer, name string, report *service.RetireReport) {
	fmt.Fprintf(out, "Deleted %d of %d remote jobs for %s\n", len(report.Deleted), report.Candidates, name)
	if len(report.Failures) == 0 {
		return
	}
	rows := make([][]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		rows = append(rows, []string{f.ID, f.Err.Error()})
	}
	fmt.Fprintln(out, renderTable([]string{"Job", "Error"}, rows, nil))
}
