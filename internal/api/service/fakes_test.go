package service

import (
	"context"

	"github.com/rs/zerolog"

	"sqlchat/internal/api/models"
)

// fakeLLM serves canned completions in order and records every prompt it saw. The
// last response is repeated once the queue runs out.
type fakeLLM struct {
	responses []string
	genErr    error
	embedErr  error
	embedding []float32

	systems    []string
	users      []string
	embedCalls int
}

func (slf *fakeLLM) GenerateText(_ context.Context, system, user string, _ float32) (string, error) {
	slf.systems = append(slf.systems, system)
	slf.users = append(slf.users, user)
	if slf.genErr != nil {
		return "", slf.genErr
	}
	if len(slf.responses) == 0 {
		return "", nil
	}
	resp := slf.responses[0]
	if len(slf.responses) > 1 {
		slf.responses = slf.responses[1:]
	}
	return resp, nil
}

func (slf *fakeLLM) Embed(_ context.Context, _ string) ([]float32, error) {
	slf.embedCalls++
	if slf.embedErr != nil {
		return nil, slf.embedErr
	}
	if slf.embedding == nil {
		return []float32{0.1, 0.2, 0.3}, nil
	}
	return slf.embedding, nil
}

// fakeIndex is an in-memory SchemaIndex. SearchNearest returns the documents named
// in searchHits, in order.
type fakeIndex struct {
	docs       map[string]models.SchemaDocument
	searchHits []string

	searchErr error
	countErr  error

	fetchCalls []string
	upserts    int
}

func (slf *fakeIndex) EnsureCollection(_ context.Context) error { return nil }

func (slf *fakeIndex) Upsert(_ context.Context, doc models.SchemaDocument, _ string, _ []float32) error {
	if slf.docs == nil {
		slf.docs = make(map[string]models.SchemaDocument)
	}
	slf.docs[doc.TableName] = doc
	slf.upserts++
	return nil
}

func (slf *fakeIndex) SearchNearest(_ context.Context, _ []float32, k int) ([]models.SchemaDocument, error) {
	if slf.searchErr != nil {
		return nil, slf.searchErr
	}
	var out []models.SchemaDocument
	for _, name := range slf.searchHits {
		if doc, ok := slf.docs[name]; ok && len(out) < k {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (slf *fakeIndex) FetchByTable(_ context.Context, table string) (models.SchemaDocument, bool, error) {
	slf.fetchCalls = append(slf.fetchCalls, table)
	doc, ok := slf.docs[table]
	return doc, ok, nil
}

func (slf *fakeIndex) Count(_ context.Context) (int64, error) {
	if slf.countErr != nil {
		return 0, slf.countErr
	}
	return int64(len(slf.docs)), nil
}

func (slf *fakeIndex) ListDocuments(_ context.Context, limit int) ([]models.SchemaDocument, error) {
	var out []models.SchemaDocument
	for _, doc := range slf.docs {
		if len(out) >= limit {
			break
		}
		out = append(out, doc)
	}
	return out, nil
}

func customersDoc() models.SchemaDocument {
	return models.SchemaDocument{
		TableName:   "customers",
		Description: "Registered customers",
		Columns: []models.ColumnInfo{
			{Name: "customer_id", DataType: "integer", IsPrimary: true},
			{Name: "name", DataType: "text"},
			{Name: "email", DataType: "text"},
		},
	}
}

func ordersDoc() models.SchemaDocument {
	return models.SchemaDocument{
		TableName:   "orders",
		Description: "Customer orders",
		Columns: []models.ColumnInfo{
			{Name: "order_id", DataType: "integer", IsPrimary: true},
			{Name: "customer_id", DataType: "integer", IsForeign: true, RefTable: "customers", RefColumn: "customer_id"},
			{Name: "total_amount", DataType: "numeric"},
			{Name: "status", DataType: "text"},
		},
	}
}

func orderItemsDoc() models.SchemaDocument {
	return models.SchemaDocument{
		TableName:   "order_items",
		Description: "Line items",
		Columns: []models.ColumnInfo{
			{Name: "item_id", DataType: "integer", IsPrimary: true},
			{Name: "order_id", DataType: "integer", IsForeign: true, RefTable: "orders", RefColumn: "order_id"},
			{Name: "quantity", DataType: "integer"},
		},
	}
}

func testContext(docs ...models.SchemaDocument) models.RetrievalContext {
	return models.RetrievalContext{Documents: docs}
}

func newTestValidator() *ValidatorService {
	return &ValidatorService{logger: zerolog.Nop()}
}

func newTestGenerator(llm *fakeLLM) *GeneratorService {
	return &GeneratorService{logger: zerolog.Nop(), llm: llm}
}

func newTestRetriever(llm *fakeLLM, index *fakeIndex, topK, fkDepth int) *RetrieverService {
	return &RetrieverService{
		logger:   zerolog.Nop(),
		embedder: llm,
		index:    index,
		topK:     topK,
		fkDepth:  fkDepth,
	}
}
