package main

import (
	"github.com/spf13/cobra"
)

// rootFlags are the persistent flags every subcommand inherits, Streamy-
// style (cmd/streamy/root.go's rootFlags struct). --verbose and --stats
// mirror beepfd-bpf-optimizer/cmd/optimizer's same-named flags
// (SPEC_FULL.md §11); this repo has exactly one subcommand today (`run`),
// where the teacher had none (flag.Parse() at top level) — cobra's
// root-plus-subcommand shape is carried anyway since it is what the rest
// of this module's ambient stack already standardizes on.
type rootFlags struct {
	verbose bool
	stats   bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "dswp",
		Short:         "dswp decouples a loop's dependence graph into a pipelined procedure pair",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Verbose diagnostic output")
	cmd.PersistentFlags().BoolVar(&flags.stats, "stats", false, "Show stage/plan statistics on success")

	cmd.AddCommand(newRunCmd(flags))

	return cmd
}
