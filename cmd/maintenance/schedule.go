package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScheduleCmd() *cobra.Command {
	var spec string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the daily workload reset until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			if spec == "" {
				spec = rt.cfg.ResetCron
			}
			c, err := newResetScheduler(ctx, spec, rt.cfg.Location(), rt.engine, rt.log)
			if err != nil {
				return err
			}
			c.Start()
			rt.log.Info("reset scheduler started",
				zap.String("cron", spec),
				zap.String("timezone", rt.cfg.Location().String()),
			)

			<-ctx.Done()
			<-c.Stop().Done()
			rt.log.Info("reset scheduler stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&spec, "cron", "", "cron expression, defaults to RESET_CRON")
	return cmd
}

// newResetScheduler registers the workload reset on spec, evaluated in loc.
// Runs never overlap.
func newResetScheduler(ctx context.Context, spec string, loc *time.Location, r WorkloadResetter, log *zap.Logger) (*cron.Cron, error) {
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := c.AddFunc(spec, func() {
		_, _ = resetWorkloads(context.WithoutCancel(ctx), r, nil, log)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reset schedule %q: %w", spec, err)
	}
	return c, nil
}
