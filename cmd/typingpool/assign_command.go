package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathanpberger/typingpool/internal/config"
	"github.com/jonathanpberger/typingpool/internal/project"
)

type assignFlags struct {
	template string
	reward   string
	currency string
	keywords []string
	deadline string
	lifetime string
	approval string
	qualify  []string
}

func newAssignCommand(ctx *commandContext) *cobra.Command {
	var flags assignFlags

	cmd := &cobra.Command{
		Use:   "assign PROJECT",
		Short: "Publish a job for every chunk that needs one",
		Long: `Uploads the project's audio if needed, then creates one remote job per
chunk that has no transcription and no unexpired job. Running it again
only republishes chunks whose job has since expired.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			assign, err := flags.apply(cmd, cfg.Assign)
			if err != nil {
				return err
			}
			tmpl, err := resolveTemplate(cfg, flags.template)
			if err != nil {
				return err
			}

			engine, closeCache, err := ctx.engine(cmd.Context(), engineOptions{taskTemplate: tmpl, needAssets: true})
			if err != nil {
				return err
			}
			defer closeCache()

			return ctx.withLockedProject(cmd.Context(), args[0], func(p *project.Project) error {
				report, err := engine.Publish(cmd.Context(), p, assign.Policy())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if report.AudioUploaded {
					fmt.Fprintf(out, "Uploaded %d audio chunks for %s\n", len(p.AudioURLs()), p.Name())
				}
				if report.StaleRemovalErr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: some expired task pages could not be removed: %v\n", report.StaleRemovalErr)
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Project", "Total", "Complete", "Outstanding", "Assigned"},
					[][]string{{p.Name(), itoa(report.Total), itoa(report.Complete), itoa(report.Outstanding), itoa(report.Published)}},
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
				))
				if report.Published > 0 {
					fmt.Fprintf(out, "Assigned %d jobs at %s each\n", report.Published, assign.Policy().Reward)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flags.template, "template", "", "Task page template file or name in the templates directory")
	cmd.Flags().StringVar(&flags.reward, "reward", "", "Reward per job, as N.NN")
	cmd.Flags().StringVar(&flags.currency, "currency", "", "Reward currency")
	cmd.Flags().StringArrayVar(&flags.keywords, "keyword", nil, "Job keyword (repeatable, replaces configured keywords)")
	cmd.Flags().StringVar(&flags.deadline, "deadline", "", "Time a worker has to finish, e.g. 3h or 30m")
	cmd.Flags().StringVar(&flags.lifetime, "lifetime", "", "Time jobs stay available, e.g. 2d")
	cmd.Flags().StringVar(&flags.approval, "approval", "", "Time before submissions are auto-approved, e.g. 1d")
	cmd.Flags().StringArrayVar(&flags.qualify, "qualify", nil, `Worker qualification like "approval_rate >= 95" (repeatable, replaces configured ones)`)

	return cmd
}

// apply layers the flags that were set over the configured defaults. The
// same validation as the config file applies.
func (f *assignFlags) apply(cmd *cobra.Command, assign config.AssignConfig) (config.AssignConfig, error) {
	changed := cmd.Flags().Changed
	if changed("reward") {
		if err := assign.SetReward(f.reward); err != nil {
			return assign, err
		}
	}
	if changed("currency") {
		assign.Currency = f.currency
	}
	if changed("keyword") {
		assign.Keywords = append([]string(nil), f.keywords...)
	}
	for _, ts := range []struct{ field, value string }{
		{"deadline", f.deadline},
		{"lifetime", f.lifetime},
		{"approval", f.approval},
	} {
		if changed(ts.field) {
			if err := assign.SetTimespec(ts.field, ts.value); err != nil {
				return assign, err
			}
		}
	}
	if changed("qualify") {
		if err := assign.SetQualifications(f.qualify); err != nil {
			return assign, err
		}
	}
	return assign, nil
}
