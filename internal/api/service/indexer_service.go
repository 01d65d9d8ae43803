package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"sqlchat"
)

// ErrIndexingInProgress is returned when a re-index is requested while another run
// holds the writer lock.
var ErrIndexingInProgress = errors.New("schema indexing is already in progress")

// IndexerService builds and refreshes the vector index from the schema catalog.
// Indexing is idempotent (documents are upserted keyed by table name) and
// single-writer: concurrent runs are rejected rather than queued.
type IndexerService struct {
	logger   zerolog.Logger
	catalog  *CatalogService
	embedder Embedder
	index    SchemaIndex

	mu sync.Mutex
}

func NewIndexerService(catalog *CatalogService, embedder Embedder, index SchemaIndex) *IndexerService {
	return &IndexerService{
		logger:   sqlchat.Logger,
		catalog:  catalog,
		embedder: embedder,
		index:    index,
	}
}

// Index refreshes the catalog, renders one document per table, embeds it and
// upserts it into the vector store. Returns the number of tables indexed.
func (slf *IndexerService) Index(ctx context.Context) (int, error) {
	if !slf.mu.TryLock() {
		return 0, ErrIndexingInProgress
	}
	defer slf.mu.Unlock()

	if err := slf.catalog.Refresh(ctx); err != nil {
		return 0, err
	}
	if err := slf.index.EnsureCollection(ctx); err != nil {
		return 0, err
	}

	docs := slf.catalog.Documents()
	slf.logger.Info().Int("tables", len(docs)).Msg("indexing schema documents")

	for _, doc := range docs {
		rendered := doc.Render()
		embedding, err := slf.embedder.Embed(ctx, rendered)
		if err != nil {
			return 0, fmt.Errorf("failed to embed document for %s: %w", doc.TableName, err)
		}
		if err := slf.index.Upsert(ctx, doc, rendered, embedding); err != nil {
			return 0, err
		}
	}

	return len(docs), nil
}
