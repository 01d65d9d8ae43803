package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlchat/internal/api/models"
)

func TestRetriever_EmptyIndexIsSchemaNotIndexed(t *testing.T) {
	llm := &fakeLLM{}
	index := &fakeIndex{}
	retriever := newTestRetriever(llm, index, 5, 1)

	_, err := retriever.Retrieve(context.Background(), "How many orders are pending?")

	var perr *models.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, models.KindSchemaNotIndexed, perr.Kind)
	assert.Zero(t, llm.embedCalls, "should not embed against an empty index")
}

func TestRetriever_ExpandsForeignKeys(t *testing.T) {
	llm := &fakeLLM{}
	index := &fakeIndex{
		docs: map[string]models.SchemaDocument{
			"customers": customersDoc(),
			"orders":    ordersDoc(),
		},
		searchHits: []string{"orders"},
	}
	retriever := newTestRetriever(llm, index, 5, 1)

	rctx, err := retriever.Retrieve(context.Background(), "What is the total amount of orders?")

	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "customers"}, rctx.TableNames())
	assert.Equal(t, []string{"customers"}, index.fetchCalls)
}

func TestRetriever_ExpansionDepthIsBounded(t *testing.T) {
	docs := map[string]models.SchemaDocument{
		"customers":   customersDoc(),
		"orders":      ordersDoc(),
		"order_items": orderItemsDoc(),
	}

	llm := &fakeLLM{}
	shallow := newTestRetriever(llm, &fakeIndex{docs: docs, searchHits: []string{"order_items"}}, 5, 1)

	rctx, err := shallow.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.True(t, rctx.HasTable("order_items"))
	assert.True(t, rctx.HasTable("orders"))
	assert.False(t, rctx.HasTable("customers"), "second-degree reference must stay outside a depth-1 context")

	deep := newTestRetriever(llm, &fakeIndex{docs: docs, searchHits: []string{"order_items"}}, 5, 2)

	rctx, err = deep.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.True(t, rctx.HasTable("customers"), "depth-2 expansion should follow the second hop")
}

func TestRetriever_SkipsUnindexedReferences(t *testing.T) {
	// orders references customers, but customers was never indexed.
	llm := &fakeLLM{}
	index := &fakeIndex{
		docs:       map[string]models.SchemaDocument{"orders": ordersDoc()},
		searchHits: []string{"orders"},
	}
	retriever := newTestRetriever(llm, index, 5, 1)

	rctx, err := retriever.Retrieve(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, rctx.TableNames())
}

func TestRetriever_DeduplicatesSearchHits(t *testing.T) {
	llm := &fakeLLM{}
	index := &fakeIndex{
		docs:       map[string]models.SchemaDocument{"customers": customersDoc()},
		searchHits: []string{"customers", "customers"},
	}
	retriever := newTestRetriever(llm, index, 5, 0)

	rctx, err := retriever.Retrieve(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t, []string{"customers"}, rctx.TableNames())
}
