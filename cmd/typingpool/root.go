package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(opts ...func(*commandContext)) *cobra.Command {
	var configFlag string
	var sandboxFlag bool
	var verboseFlag bool

	ctx := newCommandContext(&configFlag, &sandboxFlag, &verboseFlag)
	for _, opt := range opts {
		opt(ctx)
	}

	rootCmd := &cobra.Command{
		Use:   "typingpool",
		Short: "Publish audio chunks as transcription jobs and collect the results",
		Long: `typingpool keeps a local project ledger of audio chunks in step with a
remote job marketplace: assign publishes jobs for chunks that need one,
collect merges approved transcriptions, finish retires remote jobs and
hosted files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default ~/.typingpool)")
	rootCmd.PersistentFlags().BoolVar(&sandboxFlag, "sandbox", false, "Use the marketplace sandbox endpoint")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(newAssignCommand(ctx))
	rootCmd.AddCommand(newCollectCommand(ctx))
	rootCmd.AddCommand(newFinishCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))

	return rootCmd
}
