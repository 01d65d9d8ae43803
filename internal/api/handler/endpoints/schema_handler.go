package endpoints

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/graceful"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"sqlchat"
	"sqlchat/internal/api/handler/response"
	"sqlchat/internal/api/service"
	"sqlchat/pkg"
)

const previewLimit = 100

type schemaHandler struct {
	logger  zerolog.Logger
	config  sqlchat.AppConfig
	indexer *service.IndexerService
	store   *pkg.VectorStore
	llm     *pkg.LLMClient
}

func newSchemaHandler() *schemaHandler {
	cfg := sqlchat.GetConfig()
	llm := pkg.NewLLMClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.ChatModel, cfg.LLM.EmbedModel)
	store := pkg.NewVectorStore(cfg.Typesense.URL, cfg.Typesense.APIKey, cfg.LLM.EmbeddingDim)

	catalog := service.NewCatalogService()
	if err := catalog.Load(context.Background()); err != nil {
		sqlchat.Logger.Warn().Err(err).Msg("Initial catalog load failed, waiting for first index run")
	}

	return &schemaHandler{
		logger:  sqlchat.Logger,
		config:  cfg,
		indexer: service.NewIndexerService(catalog, llm, store),
		store:   store,
		llm:     llm,
	}
}

func SchemaHandler(router *graceful.Graceful) {
	h := newSchemaHandler()

	routes := router.Group("/api/v1/schema")
	{
		routes.POST("/index", h.indexSchema)
		routes.GET("/preview", h.preview)
	}
	router.GET("/health", h.health)
}

func (slf *schemaHandler) indexSchema(c *gin.Context) {
	count, err := slf.indexer.Index(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrIndexingInProgress) {
			c.JSON(http.StatusConflict, response.APIError{Message: err.Error()})
			return
		}
		slf.logger.Error().Err(err).Msg("Failed to index schema")
		c.JSON(http.StatusInternalServerError, response.APIError{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.IndexResponse{Status: "indexed", TableCount: count})
}

func (slf *schemaHandler) preview(c *gin.Context) {
	docs, err := slf.store.ListDocuments(c.Request.Context(), previewLimit)
	if err != nil {
		slf.logger.Error().Err(err).Msg("Failed to list indexed documents")
		c.JSON(http.StatusInternalServerError, response.APIError{Message: err.Error()})
		return
	}

	tables := make([]response.TablePreview, 0, len(docs))
	for _, doc := range docs {
		rendered := doc.Render()
		if len(rendered) > 100 {
			rendered = rendered[:100] + "..."
		}
		tables = append(tables, response.TablePreview{TableName: doc.TableName, Preview: rendered})
	}

	c.JSON(http.StatusOK, response.SchemaPreviewResponse{Tables: tables})
}

func (slf *schemaHandler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := response.HealthResponse{
		Database:    sqlchat.DB.PingContext(ctx) == nil,
		VectorStore: slf.store.Ping(ctx) == nil,
		Inference:   slf.llm.Ping(ctx) == nil,
	}
	resp.Status = "ok"
	if !resp.Database || !resp.VectorStore || !resp.Inference {
		resp.Status = "degraded"
	}

	c.JSON(http.StatusOK, resp)
}
