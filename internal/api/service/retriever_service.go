package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"sqlchat"
	"sqlchat/internal/api/models"
)

// RetrieverService embeds a question, pulls the top-k schema documents from the
// vector index and closes the set under a bounded number of foreign-key expansion
// rounds so generated joins stay inside the context.
type RetrieverService struct {
	logger   zerolog.Logger
	embedder Embedder
	index    SchemaIndex
	topK     int
	fkDepth  int
}

func NewRetrieverService(embedder Embedder, index SchemaIndex) *RetrieverService {
	cfg := sqlchat.GetConfig()
	return &RetrieverService{
		logger:   sqlchat.Logger,
		embedder: embedder,
		index:    index,
		topK:     cfg.Pipeline.TopK,
		fkDepth:  cfg.Pipeline.FKExpansionDepth,
	}
}

// Retrieve returns the retrieval context for one question. An unbuilt index is a
// fatal precondition reported as KindSchemaNotIndexed.
func (slf *RetrieverService) Retrieve(ctx context.Context, question string) (models.RetrievalContext, error) {
	var rctx models.RetrievalContext

	count, err := slf.index.Count(ctx)
	if err != nil {
		return rctx, &models.PipelineError{Kind: models.KindConnectivity, Message: fmt.Sprintf("vector index unavailable: %v", err)}
	}
	if count == 0 {
		return rctx, &models.PipelineError{Kind: models.KindSchemaNotIndexed, Message: "schema has not been indexed yet; run the indexing operation first"}
	}

	embedding, err := slf.embedder.Embed(ctx, question)
	if err != nil {
		return rctx, &models.PipelineError{Kind: models.KindConnectivity, Message: fmt.Sprintf("failed to embed question: %v", err)}
	}

	docs, err := slf.index.SearchNearest(ctx, embedding, slf.topK)
	if err != nil {
		return rctx, &models.PipelineError{Kind: models.KindConnectivity, Message: fmt.Sprintf("vector search failed: %v", err)}
	}
	if len(docs) == 0 {
		return rctx, &models.PipelineError{Kind: models.KindSchemaNotIndexed, Message: "vector search returned no schema documents; run the indexing operation first"}
	}

	for _, doc := range docs {
		if !rctx.HasTable(doc.TableName) {
			rctx.Documents = append(rctx.Documents, doc)
		}
	}

	rctx, err = slf.expandForeignKeys(ctx, rctx)
	if err != nil {
		return rctx, err
	}

	slf.logger.Debug().Strs("tables", rctx.TableNames()).Msg("retrieved schema context")
	return rctx, nil
}

// expandForeignKeys adds documents for referenced tables, one round per configured
// depth level. The closure is deliberately bounded: on densely connected schemas
// anything past the depth limit is omitted to keep the context small.
func (slf *RetrieverService) expandForeignKeys(ctx context.Context, rctx models.RetrievalContext) (models.RetrievalContext, error) {
	frontier := rctx.Documents

	for round := 0; round < slf.fkDepth && len(frontier) > 0; round++ {
		var added []models.SchemaDocument
		for _, doc := range frontier {
			for _, ref := range doc.ReferencedTables() {
				if rctx.HasTable(ref) {
					continue
				}
				refDoc, found, err := slf.index.FetchByTable(ctx, ref)
				if err != nil {
					return rctx, &models.PipelineError{Kind: models.KindConnectivity, Message: fmt.Sprintf("failed to expand context with table %s: %v", ref, err)}
				}
				if !found {
					// Referenced table was never indexed; the omission is deliberate,
					// generation proceeds with the bounded context.
					slf.logger.Warn().Str("table", ref).Msg("foreign key references an unindexed table")
					continue
				}
				rctx.Documents = append(rctx.Documents, refDoc)
				added = append(added, refDoc)
			}
		}
		if len(added) > 0 {
			slf.logger.Debug().Str("tables", strings.Join(tableNames(added), ",")).Int("round", round+1).Msg("expanded context with related tables")
		}
		frontier = added
	}

	return rctx, nil
}

func tableNames(docs []models.SchemaDocument) []string {
	names := make([]string, len(docs))
	for i, doc := range docs {
		names[i] = doc.TableName
	}
	return names
}
