package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/queue"
	"github.com/spigell/skillmatch/internal/secrets"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume match requests from RabbitMQ until interrupted",
	Run: func(_ *cobra.Command, _ []string) {
		runWorker()
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().Int("workers", 0, "number of concurrent consumers")
	viper.BindPFlag("worker.workers", workerCmd.Flags().Lookup("workers"))
}

func runWorker() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseLogger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		baseLogger.Fatal("getting a config", zap.Error(err))
	}

	runID := uuid.New()
	logger := logger.WithRun(baseLogger, runID.String())

	url, err := secrets.Load(secrets.Source{
		Name:  "amqp url",
		Value: config.Worker.URL,
		File:  config.Worker.URLFile,
		Env:   "RABBITMQ_URL",
	})
	if err != nil {
		logger.Fatal("loading broker url", zap.Error(err), zap.String("hint", "set worker.url, worker.url-file or RABBITMQ_URL"))
	}

	matcher, closeFn, err := newMatcher(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating the matcher", zap.Error(err))
	}
	defer closeFn()

	handler := &queue.Handler{Matcher: matcher, RunID: runID, Logger: logger}

	db, err := openStore(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening the result store", zap.Error(err))
	}
	if db != nil {
		defer db.Close()
		handler.Store = db
	}

	worker := queue.NewWorker(queue.Config{
		URL:          url,
		RequestQueue: config.Worker.RequestQueue,
		ResultQueue:  config.Worker.ResultQueue,
		Workers:      config.Worker.Workers,
		Prefetch:     config.Worker.Prefetch,
	}, handler, logger)

	logger.Info("starting the skillmatch worker", zap.String("version", version))

	if err := worker.Run(ctx); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}

	logger.Info("worker stopped", zap.String("reason", "signal received"))
}
