package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"clinic-orders/internal/assignment"
	"clinic-orders/internal/config"
	"clinic-orders/internal/db"
	"clinic-orders/internal/logger"
	"clinic-orders/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runtime is what every subcommand needs once configuration is loaded.
type runtime struct {
	cfg    *config.Config
	log    *zap.Logger
	conn   *sqlx.DB
	engine *assignment.Engine
}

func (rt *runtime) Close() {
	if rt.conn != nil {
		rt.conn.Close()
	}
	_ = rt.log.Sync()
}

func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	zlog, err := logger.New(cfg.LoggerLevel, cfg.Env)
	if err != nil {
		return nil, err
	}
	conn, err := db.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		return nil, err
	}
	pg := store.NewPostgresStore(conn, zlog)
	clock := assignment.SystemClock{Location: cfg.Location()}
	return &runtime{
		cfg:    cfg,
		log:    zlog,
		conn:   conn,
		engine: assignment.NewEngine(pg, pg, clock, zlog),
	}, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "maintenance",
		Short:         "Operational tasks for the clinic order service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newResetCmd(), newScheduleCmd(), newMigrateCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
