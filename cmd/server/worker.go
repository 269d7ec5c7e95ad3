package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"greenledger/config"
	"greenledger/internal/broker"
	"greenledger/internal/worker"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long: `Start the background worker. It consumes domain events from Kafka into
the audit log, maintains the redis scan counters and sweeps expired
records.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if !cfg.Kafka.Enabled {
		return errors.New("worker needs KAFKA_ENABLED=true")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	var audit worker.AuditLog
	if db, err := a.openDatabase(ctx); err != nil {
		logger.Warn("Database unavailable, continuing without audit log", zap.Error(err))
	} else {
		audit = db
	}
	var counters worker.ScanCounter
	if a.redis != nil {
		counters = a.redis
	}

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	auditWorker := worker.NewAuditWorker(consumer, audit, counters)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting event consumer", zap.String("topic", cfg.Kafka.TopicEvents))
		if err := auditWorker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return auditWorker.Stop()
	})

	g.Go(func() error {
		return a.housekeeping().Start(ctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker error", zap.Error(err))
		return err
	}
	logger.Info("Worker exited")
	return nil
}
