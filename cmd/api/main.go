package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"shipdocs/internal/api"
	"shipdocs/internal/app"
	"shipdocs/internal/config"

	tclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("wire service", zap.Error(err))
	}
	defer a.Close()

	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal("dial temporal", zap.Error(err))
	}
	defer tc.Close()

	h := api.NewServer(api.Deps{
		Pipeline:    a.Service,
		Generator:   api.TemporalGenerator{Client: tc, TaskQueue: cfg.TemporalTaskQueue},
		Documents:   a.Documents,
		Schemas:     a.Schemas,
		Catalog:     api.NewStoreCatalog(a.DB),
		DB:          a.DB,
		UploadMaxMB: cfg.UploadMaxMB,
		Logger:      logger,
	})
	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("shipdocs api listening", zap.String("addr", cfg.APIAddr), zap.String("llm_providers", cfg.LLMProviders))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}
