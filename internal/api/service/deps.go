package service

import (
	"context"

	"sqlchat/internal/api/models"
	"sqlchat/pkg"
)

// TextGenerator is the narrow surface the pipeline needs from the inference
// service: one request/response completion call. Keeping it this small lets the
// prompt/extraction logic be tested against canned responses.
type TextGenerator interface {
	GenerateText(ctx context.Context, system, user string, temperature float32) (string, error)
}

// Embedder turns text into an embedding vector, using the same model at indexing
// and query time.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SchemaIndex is the persisted vector index of per-table schema documents.
type SchemaIndex interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, doc models.SchemaDocument, rendered string, embedding []float32) error
	SearchNearest(ctx context.Context, embedding []float32, k int) ([]models.SchemaDocument, error)
	FetchByTable(ctx context.Context, table string) (models.SchemaDocument, bool, error)
	Count(ctx context.Context) (int64, error)
	ListDocuments(ctx context.Context, limit int) ([]models.SchemaDocument, error)
}

var (
	_ TextGenerator = (*pkg.LLMClient)(nil)
	_ Embedder      = (*pkg.LLMClient)(nil)
	_ SchemaIndex   = (*pkg.VectorStore)(nil)
)
