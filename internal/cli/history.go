package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/prioflow/pkg/sink"
)

func newHistoryCmd(o *options) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the records of a past run from the SQLite database",
		Example: "  prioflow history --sqlite prioflow.db\n" +
			"  prioflow history --sqlite prioflow.db --run 6f1c...",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if o.cfg.SQLite.Path == "" {
				return fmt.Errorf("a database is required (--sqlite or PRIOFLOW_SQLITE_PATH)")
			}
			db, err := sink.OpenSQLite(ctx, o.cfg.SQLite.Path, o.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if runID == "" {
				if runID, err = db.LastRun(ctx); err != nil {
					return err
				}
			}
			if runID == "" {
				return fmt.Errorf("no runs recorded in %s", o.cfg.SQLite.Path)
			}

			records, err := db.Records(ctx, runID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !o.quiet {
				fmt.Fprintf(out, "run %s\n", runID)
			}
			for _, rec := range records {
				fmt.Fprintln(out, rec.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run ID (default: the most recent run)")
	return cmd
}
