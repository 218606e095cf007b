package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"clinic-orders/internal/assignment"
	"clinic-orders/internal/catalog"
	"clinic-orders/internal/config"
	"clinic-orders/internal/db"
	"clinic-orders/internal/intake"
	"clinic-orders/internal/logger"
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

	amqpConn, err := queue.Dial(cfg.RabbitMQURL)
	if err != nil {
		zlog.Fatal("rabbitmq unavailable", zap.Error(err))
	}
	defer amqpConn.Close()
	ch, err := amqpConn.Channel()
	if err != nil {
		zlog.Fatal("open channel", zap.Error(err))
	}
	publisher, err := queue.NewPublisher(ch, cfg.OrderQueue, zlog)
	if err != nil {
		zlog.Fatal("declare order queue", zap.Error(err))
	}
	defer publisher.Close()

	pg := store.NewPostgresStore(conn, zlog)
	clock := assignment.SystemClock{Location: cfg.Location()}
	resolver := catalog.NewResolver(pg, zlog)

	srv := &server{
		intake:        intake.NewService(pg, resolver, publisher, clock, zlog),
		engine:        assignment.NewEngine(pg, pg, clock, zlog),
		hospitals:     pg,
		health:        conn.PingContext,
		boardInterval: 2 * time.Second,
		log:           zlog,
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			zlog.Error("shutdown", zap.Error(err))
		}
	}()

	zlog.Info("api listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.Env))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zlog.Fatal("http server", zap.Error(err))
	}
}
