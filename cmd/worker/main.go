package main

import (
	"context"
	"log"

	"shipdocs/internal/activities"
	"shipdocs/internal/app"
	"shipdocs/internal/config"
	"shipdocs/internal/workflows"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal("dial temporal", zap.Error(err))
	}
	defer c.Close()

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("wire service", zap.Error(err))
	}
	defer a.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, activities.New(a.Service))

	logger.Info("shipdocs worker listening",
		zap.String("temporal", cfg.TemporalAddress),
		zap.String("queue", cfg.TemporalTaskQueue),
		zap.String("llm_providers", cfg.LLMProviders))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}
