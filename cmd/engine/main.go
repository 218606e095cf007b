package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"clinic-orders/internal/assignment"
	"clinic-orders/internal/catalog"
	"clinic-orders/internal/config"
	"clinic-orders/internal/db"
	"clinic-orders/internal/locker"
	"clinic-orders/internal/logger"
	"clinic-orders/internal/notify"
	"clinic-orders/internal/pipeline"
	"clinic-orders/internal/queue"
	"clinic-orders/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	zlog, err := logger.New(cfg.LoggerLevel, cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		zlog.Fatal("database unavailable", zap.Error(err))
	}
	defer conn.Close()

	pg := store.NewPostgresStore(conn, zlog)
	clock := assignment.SystemClock{Location: cfg.Location()}

	deps := pipeline.Deps{
		Resolver: catalog.NewResolver(pg, zlog),
		Engine:   assignment.NewEngine(pg, pg, clock, zlog),
		Store:    pg,
		Notifier: notify.NewSlack(cfg, cfg.SlackTimeout, zlog),
		Clock:    clock,
		Log:      zlog,
	}

	// Without redis the worker still runs, only redelivery detection is lost.
	rdb, err := locker.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		zlog.Warn("redis unavailable, redelivered orders will not be detected", zap.Error(err))
	} else {
		defer rdb.Close()
		deps.Guard = locker.NewGuard(rdb, cfg.OrderClaimTTL, cfg.OrderRetainTTL, zlog)
	}

	amqpConn, err := queue.Dial(cfg.RabbitMQURL)
	if err != nil {
		zlog.Fatal("rabbitmq unavailable", zap.Error(err))
	}
	defer amqpConn.Close()
	ch, err := amqpConn.Channel()
	if err != nil {
		zlog.Fatal("open channel", zap.Error(err))
	}
	consumer, err := queue.NewConsumer(ch, cfg.OrderQueue, zlog)
	if err != nil {
		zlog.Fatal("start consumer", zap.Error(err))
	}
	defer consumer.Close()

	p := pipeline.New(deps)
	zlog.Info("order worker started",
		zap.String("queue", cfg.OrderQueue),
		zap.String("timezone", cfg.Location().String()),
	)
	if err := consumer.Run(ctx, p.Handle); err != nil {
		zlog.Error("consumer stopped", zap.Error(err))
		return
	}
	zlog.Info("order worker stopped")
}
