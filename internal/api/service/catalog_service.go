package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sqlchat"
	"sqlchat/internal/api/models"
	"sqlchat/pkg"
)

const (
	catalogCacheKey = "catalog:documents"
	catalogCacheTTL = 60 * time.Minute
)

// CatalogService owns the process-wide snapshot of the analyzed database schema.
// The snapshot is read-mostly: every request reads it through the RWMutex, and only
// Refresh replaces it, atomically. Callers receive the handle, never an implicit
// singleton.
type CatalogService struct {
	logger   zerolog.Logger
	db       *sql.DB
	useCache bool

	mu     sync.RWMutex
	docs   []models.SchemaDocument
	byName map[string]models.SchemaDocument
}

func NewCatalogService() *CatalogService {
	return &CatalogService{
		logger:   sqlchat.Logger,
		db:       sqlchat.DB,
		useCache: true,
	}
}

// NewCatalogServiceWithDB builds a catalog over an injected connection, without the
// Redis cache. Used by tests.
func NewCatalogServiceWithDB(db *sql.DB, logger zerolog.Logger) *CatalogService {
	return &CatalogService{logger: logger, db: db}
}

// Load populates the snapshot, preferring the cached copy over a fresh
// introspection run.
func (slf *CatalogService) Load(ctx context.Context) error {
	if slf.useCache {
		var cached []models.SchemaDocument
		if err := pkg.RedisGet(catalogCacheKey, &cached); err == nil && len(cached) > 0 {
			slf.swap(cached)
			return nil
		} else if err != nil && !pkg.IsRedisNil(err) {
			slf.logger.Warn().Err(err).Msg("catalog cache read failed, falling back to introspection")
		}
	}
	return slf.Refresh(ctx)
}

// Refresh re-introspects the database and atomically swaps the snapshot.
func (slf *CatalogService) Refresh(ctx context.Context) error {
	rows, err := pkg.FindPostgresDatabaseSchema(ctx, slf.db)
	if err != nil {
		return fmt.Errorf("schema introspection failed: %w", err)
	}

	docs := pkg.GroupColumnRows(rows)
	slf.swap(docs)

	if slf.useCache {
		if err := pkg.RedisSet(catalogCacheKey, docs, catalogCacheTTL); err != nil {
			slf.logger.Warn().Err(err).Msg("failed to cache catalog snapshot")
		}
	}

	slf.logger.Info().Int("tables", len(docs)).Msg("schema catalog refreshed")
	return nil
}

// Documents returns the current snapshot.
func (slf *CatalogService) Documents() []models.SchemaDocument {
	slf.mu.RLock()
	defer slf.mu.RUnlock()
	out := make([]models.SchemaDocument, len(slf.docs))
	copy(out, slf.docs)
	return out
}

// Document looks up one table by name.
func (slf *CatalogService) Document(table string) (models.SchemaDocument, bool) {
	slf.mu.RLock()
	defer slf.mu.RUnlock()
	doc, ok := slf.byName[table]
	return doc, ok
}

func (slf *CatalogService) swap(docs []models.SchemaDocument) {
	byName := make(map[string]models.SchemaDocument, len(docs))
	for _, doc := range docs {
		byName[doc.TableName] = doc
	}
	slf.mu.Lock()
	slf.docs = docs
	slf.byName = byName
	slf.mu.Unlock()
}
