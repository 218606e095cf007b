package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// WorkloadResetter is satisfied by *assignment.Engine.
type WorkloadResetter interface {
	ResetWorkloads(ctx context.Context, hospitalID *int64) (int, error)
}

func newResetCmd() *cobra.Command {
	var hospitalID int64

	cmd := &cobra.Command{
		Use:   "reset-workloads",
		Short: "Zero the accumulated treatment minutes of active doctors",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			var scope *int64
			if cmd.Flags().Changed("hospital") {
				scope = &hospitalID
			}
			n, err := resetWorkloads(cmd.Context(), rt.engine, scope, rt.log)
			fmt.Fprintf(cmd.OutOrStdout(), "reset %d doctors\n", n)
			return err
		},
	}
	cmd.Flags().Int64Var(&hospitalID, "hospital", 0, "only reset doctors of this hospital")
	return cmd
}

func resetWorkloads(ctx context.Context, r WorkloadResetter, hospitalID *int64, log *zap.Logger) (int, error) {
	fields := []zap.Field{}
	if hospitalID != nil {
		fields = append(fields, zap.Int64("hospital_id", *hospitalID))
	}

	n, err := r.ResetWorkloads(ctx, hospitalID)
	if err != nil {
		log.Error("workload reset incomplete", append(fields, zap.Int("reset", n), zap.Error(err))...)
		return n, err
	}
	log.Info("workload reset finished", append(fields, zap.Int("reset", n))...)
	return n, nil
}
