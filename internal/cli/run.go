package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/prioflow/pkg/scheduling/pipeline"
)

func newRunCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one batch of tasks",
		Long: "Run reads tasks from --file, or interactively from stdin when no file is\n" +
			"given, then executes them in priority order and prints one line per task.",
		Example: "  prioflow run --file tasks.yaml\n" +
			"  printf '3 B 2 A 1 C 3' | prioflow run --quiet --delay 0",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			src, closeSrc, err := o.openSource(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer closeSrc()

			pc := o.cfg.Pipeline()
			pc.Logger = o.logger
			p, err := pipeline.New(pc)
			if err != nil {
				return err
			}

			snk, err := o.openSinks(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			result, err := p.Run(ctx, src, snk)
			if cerr := snk.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close sink: %w", cerr)
			}
			if result != nil && !o.quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "run %s: %d stored, %d dropped, %d completed, %d failed in %s\n",
					result.RunID, result.Stored, result.Dropped, result.Records-result.Failed, result.Failed,
					result.Duration.Round(time.Millisecond))
			}
			return err
		},
	}
}
