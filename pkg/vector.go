package pkg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"sqlchat/internal/api/models"
)

const SchemaCollection = "schema_documents"

// VectorStore persists per-table schema documents with their embeddings in
// Typesense and serves nearest-neighbor queries over them. Documents are keyed by
// table name, so re-indexing is an idempotent upsert.
type VectorStore struct {
	client *typesense.Client
	numDim int
}

func NewVectorStore(url, apiKey string, numDim int) *VectorStore {
	client := typesense.NewClient(
		typesense.WithServer(url),
		typesense.WithAPIKey(apiKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)
	return &VectorStore{client: client, numDim: numDim}
}

// Ping checks that the Typesense node is reachable.
func (slf *VectorStore) Ping(ctx context.Context) error {
	_, err := slf.client.Health(ctx, 2*time.Second)
	return err
}

// EnsureCollection creates the schema_documents collection if it does not exist yet.
func (slf *VectorStore) EnsureCollection(ctx context.Context) error {
	_, err := slf.client.Collection(SchemaCollection).Retrieve(ctx)
	if err == nil {
		return nil
	}

	schema := &api.CollectionSchema{
		Name: SchemaCollection,
		Fields: []api.Field{
			{Name: "table_name", Type: "string"},
			{Name: "description", Type: "string", Optional: pointer.True()},
			{Name: "columns", Type: "string", Optional: pointer.True()},
			{Name: "document", Type: "string"},
			{Name: "embedding", Type: "float[]", NumDim: pointer.Int(slf.numDim)},
		},
	}

	if _, err := slf.client.Collections().Create(ctx, schema); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", SchemaCollection, err)
	}
	return nil
}

// Upsert stores one schema document with its rendered text and embedding.
func (slf *VectorStore) Upsert(ctx context.Context, doc models.SchemaDocument, rendered string, embedding []float32) error {
	columnsJSON, err := json.Marshal(doc.Columns)
	if err != nil {
		return fmt.Errorf("failed to serialize columns for %s: %w", doc.TableName, err)
	}

	document := map[string]interface{}{
		"id":          doc.TableName,
		"table_name":  doc.TableName,
		"description": doc.Description,
		"columns":     string(columnsJSON),
		"document":    rendered,
		"embedding":   embedding,
	}

	if _, err := slf.client.Collection(SchemaCollection).Documents().Upsert(ctx, document); err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.TableName, err)
	}
	return nil
}

// SearchNearest returns the k schema documents closest to the given embedding.
func (slf *VectorStore) SearchNearest(ctx context.Context, embedding []float32, k int) ([]models.SchemaDocument, error) {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	vectorQuery := fmt.Sprintf("embedding:([%s], k:%d)", strings.Join(parts, ","), k)

	searchParams := &api.SearchCollectionParams{
		Q:             pointer.String("*"),
		VectorQuery:   pointer.String(vectorQuery),
		PerPage:       pointer.Int(k),
		ExcludeFields: pointer.String("embedding"),
	}

	result, err := slf.client.Collection(SchemaCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	var docs []models.SchemaDocument
	if result.Hits == nil {
		return docs, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc, err := documentFromFields(*hit.Document)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// FetchByTable retrieves a single schema document by table name. The second return
// value is false when the table is not indexed.
func (slf *VectorStore) FetchByTable(ctx context.Context, table string) (models.SchemaDocument, bool, error) {
	raw, err := slf.client.Collection(SchemaCollection).Document(table).Retrieve(ctx)
	if err != nil {
		// Typesense reports missing documents as a 404 API error.
		if strings.Contains(err.Error(), "404") || strings.Contains(strings.ToLower(err.Error()), "not found") {
			return models.SchemaDocument{}, false, nil
		}
		return models.SchemaDocument{}, false, fmt.Errorf("failed to fetch document %s: %w", table, err)
	}
	doc, err := documentFromFields(raw)
	if err != nil {
		return models.SchemaDocument{}, false, err
	}
	return doc, true, nil
}

// Count returns the number of indexed schema documents; zero means the index has
// not been built.
func (slf *VectorStore) Count(ctx context.Context) (int64, error) {
	col, err := slf.client.Collection(SchemaCollection).Retrieve(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "404") || strings.Contains(strings.ToLower(err.Error()), "not found") {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to retrieve collection: %w", err)
	}
	if col.NumDocuments == nil {
		return 0, nil
	}
	return *col.NumDocuments, nil
}

// ListDocuments returns up to limit indexed documents, for schema previews.
func (slf *VectorStore) ListDocuments(ctx context.Context, limit int) ([]models.SchemaDocument, error) {
	searchParams := &api.SearchCollectionParams{
		Q:             pointer.String("*"),
		QueryBy:       pointer.String("table_name"),
		PerPage:       pointer.Int(limit),
		ExcludeFields: pointer.String("embedding"),
	}

	result, err := slf.client.Collection(SchemaCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	var docs []models.SchemaDocument
	if result.Hits == nil {
		return docs, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc, err := documentFromFields(*hit.Document)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func documentFromFields(fields map[string]interface{}) (models.SchemaDocument, error) {
	var doc models.SchemaDocument
	if v, ok := fields["table_name"].(string); ok {
		doc.TableName = v
	}
	if v, ok := fields["description"].(string); ok {
		doc.Description = v
	}
	if v, ok := fields["columns"].(string); ok && v != "" {
		if err := json.Unmarshal([]byte(v), &doc.Columns); err != nil {
			return doc, fmt.Errorf("failed to decode columns for %s: %w", doc.TableName, err)
		}
	}
	return doc, nil
}
