package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vnykmshr/prioflow/pkg/metrics"
	"github.com/vnykmshr/prioflow/pkg/scheduling/intake"
	"github.com/vnykmshr/prioflow/pkg/scheduling/pipeline"
	"github.com/vnykmshr/prioflow/pkg/scheduling/scheduler"
)

const batchJobID = "batch"

func newScheduleCmd(o *options) *cobra.Command {
	var (
		expr        string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Re-run a batch file on a cron schedule",
		Long: "Schedule runs the batch in --file every time the cron expression fires.\n" +
			"Each run is independent. A tick is skipped while the previous run is\n" +
			"still in progress. Stops on SIGINT or SIGTERM.",
		Example: "  prioflow schedule --cron '*/5 * * * *' --file tasks.yaml --metrics-addr :9090",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := o.cfg
			if cmd.Flags().Changed("cron") {
				cfg.Cron = expr
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if cfg.Cron == "" {
				return fmt.Errorf("a cron expression is required (--cron or PRIOFLOW_CRON)")
			}
			if cfg.TaskFile == "" {
				return fmt.Errorf("a task file is required (--file or PRIOFLOW_TASK_FILE)")
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			pc := cfg.Pipeline()
			pc.Logger = o.logger
			pc.Metrics = metrics.NewRegistry(reg)
			p, err := pipeline.New(pc)
			if err != nil {
				return err
			}

			snk, err := o.openSinks(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer snk.Close()

			sched := scheduler.New(scheduler.Config{Logger: o.logger})
			err = sched.Add(scheduler.Job{
				ID:       batchJobID,
				Expr:     cfg.Cron,
				Pipeline: p,
				Source: func(context.Context) (intake.Source, error) {
					fs, err := intake.OpenFile(cfg.TaskFile)
					if err != nil {
						return nil, err
					}
					return fs, nil
				},
				Sink: snk,
			})
			if err != nil {
				<-sched.Stop()
				return err
			}

			ms := serveMetrics(cfg.MetricsAddr, newRouter(reg, sched.List), o.logger)
			defer ms.Shutdown()

			if err := sched.Start(); err != nil {
				<-sched.Stop()
				return err
			}

			select {
			case <-ctx.Done():
			case err = <-ms.Err():
				err = fmt.Errorf("metrics server: %w", err)
			}

			<-sched.Stop()
			return err
		},
	}
	cmd.Flags().StringVar(&expr, "cron", "", "Cron expression, e.g. '*/5 * * * *' or '@every 10m'")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address")
	return cmd
}
