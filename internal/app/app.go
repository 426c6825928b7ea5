// Package app builds the long-lived service handles shared by the API, the
// worker and the operator CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"shipdocs/internal/blob"
	"shipdocs/internal/config"
	"shipdocs/internal/docparse"
	"shipdocs/internal/documents"
	"shipdocs/internal/formfill"
	"shipdocs/internal/prompts"
	"shipdocs/internal/providers"
	"shipdocs/internal/reducto"
	"shipdocs/internal/schemacache"
	"shipdocs/internal/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type App struct {
	Config    config.Config
	Logger    *zap.Logger
	DB        *storage.DB
	Redis     *redis.Client
	Blobs     blob.Store
	Reducto   *reducto.Client
	Schemas   *schemacache.Cache
	Documents *storage.DocumentRepo
	Service   *documents.Service

	closers []func()
}

// New connects to Postgres (and Redis when configured) and wires the
// document service.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(dbCtx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	cacheOpts := []schemacache.Option{schemacache.WithLogger(log)}
	if cfg.RedisURL != "" {
		rdb, err := schemacache.NewRedisClient(dbCtx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.Redis = rdb
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		cacheOpts = append(cacheOpts, schemacache.WithRedis(rdb, time.Duration(cfg.SchemaCacheTTLSec)*time.Second))
	}
	a.Schemas = schemacache.New(storage.NewSchemaRepo(db), cacheOpts...)

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Blobs = blobs
	if c, ok := blobs.(interface{ Close() error }); ok {
		a.closers = append(a.closers, func() { _ = c.Close() })
	}

	a.Reducto = reducto.New(reducto.Options{
		APIKey:            cfg.ReductoAPIKey,
		BaseURL:           cfg.ReductoBaseURL,
		Timeout:           time.Duration(cfg.HTTPTimeoutSecs) * time.Second,
		FailureThreshold:  cfg.BreakerFailureThreshold,
		OpenTimeout:       time.Duration(cfg.BreakerOpenSecs) * time.Second,
		RequestsPerSecond: float64(cfg.ReductoRPS),
		Logger:            log,
	})
	parser, err := docparse.New(cfg.ParserBackend, a.Reducto)
	if err != nil {
		return nil, err
	}
	llm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	vocab, err := formfill.LoadVocabulary(cfg.VocabularyPath)
	if err != nil {
		return nil, err
	}

	a.Documents = storage.NewDocumentRepo(db)
	a.Service = documents.New(documents.Deps{
		Documents: a.Documents,
		Accounts:  storage.NewAccountRepo(db),
		Addresses: storage.NewAddressRepo(db),
		Sellers:   storage.NewSellerRepo(db),
		Schemas:   a.Schemas,
		LLM:       llm,
		Audit:     storage.NewLLMAuditRepo(db),
		Parser:    parser,
		Blobs:     blobs,
		Engine:    formfill.NewEngine(vocab, log),
		Prompts:   prompts.Library{Dir: cfg.TemplatesDir},
		Fillers: map[string]documents.Filler{
			".pdf":  documents.ReductoFiller{Client: a.Reducto, Color: cfg.FillerColor},
			".xlsx": documents.SheetFiller{},
		},
		Settings: documents.Settings{
			UploadsBucket:       cfg.UploadsBucket,
			GeneratedBucket:     cfg.GeneratedBucket,
			TemplatesDir:        cfg.TemplatesDir,
			BOLTemplate:         cfg.BOLTemplate,
			PackingSlipTemplate: cfg.PackingSlipTemplate,
			SignedURLTTL:        time.Duration(cfg.SignedURLTTLSecs) * time.Second,
		},
		Logger: log,
	})
	log.Info("service wired",
		zap.String("parser", parser.Name()),
		zap.String("blob_backend", cfg.BlobBackend),
		zap.String("llm_providers", cfg.LLMProviders),
		zap.Int("llm_provider_count", llm.LLMCount()),
		zap.Bool("redis", a.Redis != nil))
	ok = true
	return a, nil
}

func newBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	switch cfg.BlobBackend {
	case "gcs":
		return blob.NewGCSStore(ctx, "")
	case "local", "":
		return blob.NewLocalStore(cfg.BlobLocalRoot, cfg.BlobPublicBase)
	default:
		return nil, fmt.Errorf("unknown blob backend %q (want gcs or local)", cfg.BlobBackend)
	}
}

// Close releases handles in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
