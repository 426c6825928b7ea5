// Package schemacache looks up previously detected form schemas by template
// name so repeat fills skip field detection.
package schemacache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shipdocs/internal/formfill"
	"shipdocs/internal/models"
	"shipdocs/internal/util"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "shipdocs:form_schema:"

// Store is the durable schema table.
type Store interface {
	Get(ctx context.Context, templateName string) (models.FormSchemaRecord, error)
	Upsert(ctx context.Context, rec models.FormSchemaRecord) error
	List(ctx context.Context) ([]models.FormSchemaRecord, error)
	Delete(ctx context.Context, templateName string) (bool, error)
	UpdateDescription(ctx context.Context, templateName, description string) error
}

// Cache fronts Store with an optional Redis layer. Redis failures are logged
// and never fail a lookup.
type Cache struct {
	store Store
	rdb   redis.UniversalClient
	ttl   time.Duration
	log   *zap.Logger
}

type Option func(*Cache)

func WithRedis(rdb redis.UniversalClient, ttl time.Duration) Option {
	return func(c *Cache) {
		c.rdb = rdb
		c.ttl = ttl
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

func New(store Store, opts ...Option) *Cache {
	c := &Cache{store: store, log: zap.NewNop(), ttl: time.Hour}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the stored schema for a template. A miss is (nil, false, nil).
func (c *Cache) Lookup(ctx context.Context, templateName string) (formfill.FormSchema, bool, error) {
	if c.rdb != nil {
		b, err := c.rdb.Get(ctx, keyPrefix+templateName).Bytes()
		switch {
		case err == nil:
			schema, perr := formfill.ParseSchema(b)
			if perr == nil {
				return schema, true, nil
			}
			c.log.Warn("discarding unreadable cached schema", zap.String("template", templateName), zap.Error(perr))
		case !errors.Is(err, redis.Nil):
			c.log.Warn("schema cache read failed", zap.String("template", templateName), zap.Error(err))
		}
	}

	rec, err := c.store.Get(ctx, templateName)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("lookup form schema %q: %w", templateName, err)
	}
	schema, err := formfill.ParseSchema(rec.Schema)
	if err != nil {
		return nil, false, fmt.Errorf("lookup form schema %q: %w", templateName, err)
	}
	if len(schema) == 0 {
		return nil, false, nil
	}
	c.remember(ctx, templateName, rec.Schema)
	return schema, true, nil
}

// Save upserts a schema for a template, replacing any earlier one.
func (c *Cache) Save(ctx context.Context, templateName string, schema formfill.FormSchema, templateFileID, description string) error {
	b, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encode form schema: %w", err)
	}
	err = c.store.Upsert(ctx, models.FormSchemaRecord{
		TemplateName:   templateName,
		Schema:         b,
		NumFields:      len(schema),
		TemplateFileID: templateFileID,
		Description:    description,
	})
	if err != nil {
		return err
	}
	c.remember(ctx, templateName, b)
	return nil
}

func (c *Cache) Get(ctx context.Context, templateName string) (models.FormSchemaRecord, error) {
	return c.store.Get(ctx, templateName)
}

func (c *Cache) List(ctx context.Context) ([]models.FormSchemaRecord, error) {
	return c.store.List(ctx)
}

func (c *Cache) Delete(ctx context.Context, templateName string) (bool, error) {
	c.forget(ctx, templateName)
	return c.store.Delete(ctx, templateName)
}

func (c *Cache) UpdateDescription(ctx context.Context, templateName, description string) error {
	return c.store.UpdateDescription(ctx, templateName, description)
}

func (c *Cache) remember(ctx context.Context, templateName string, schema []byte) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+templateName, schema, c.ttl).Err(); err != nil {
		c.log.Warn("schema cache write failed", zap.String("template", templateName), zap.Error(err))
	}
}

func (c *Cache) forget(ctx context.Context, templateName string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, keyPrefix+templateName).Err(); err != nil {
		c.log.Warn("schema cache delete failed", zap.String("template", templateName), zap.Error(err))
	}
}

// NewRedisClient connects to Redis from a URL such as redis://localhost:6379/0.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}
