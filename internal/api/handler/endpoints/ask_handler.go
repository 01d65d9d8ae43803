package endpoints

import (
	"net/http"

	"github.com/gin-contrib/graceful"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"sqlchat"
	"sqlchat/internal/api/handler/request"
	"sqlchat/internal/api/handler/response"
	"sqlchat/internal/api/models"
	"sqlchat/internal/api/service"
	"sqlchat/pkg"
)

type askHandler struct {
	logger   zerolog.Logger
	config   sqlchat.AppConfig
	pipeline *service.PipelineService
}

func newAskHandler() *askHandler {
	return &askHandler{
		logger:   sqlchat.Logger,
		config:   sqlchat.GetConfig(),
		pipeline: service.NewPipelineService(),
	}
}

func AskHandler(router *graceful.Graceful) {
	h := newAskHandler()

	routes := router.Group("/api/v1")
	{
		routes.POST("/ask", h.ask)
	}
}

func (slf *askHandler) ask(c *gin.Context) {
	var req request.AskRequest
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		slf.logger.Error().Err(err).Msg("Failed to parse ask request")
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}
	if len(req.Question) > slf.config.Pipeline.QuestionMaxLen {
		c.JSON(http.StatusBadRequest, response.APIError{Message: "question too long"})
		return
	}

	result := slf.pipeline.Ask(c.Request.Context(), req.Question)

	if result.Clarification != "" {
		c.JSON(http.StatusOK, response.ClarificationResponse{ClarificationNeeded: result.Clarification})
		return
	}
	if result.Err != nil {
		c.JSON(statusForKind(result.Err.Kind), response.AskError{
			Error: result.Err.Message,
			Kind:  string(result.Err.Kind),
			SQL:   result.Err.SQL,
		})
		return
	}

	c.JSON(http.StatusOK, response.AskResponse{
		Answer:      result.Answer.Answer,
		SQL:         result.Answer.SQL,
		RowCount:    result.Answer.RowCount,
		Attempts:    result.Attempts,
		TotalTimeMS: result.TotalTimeMS,
	})
}

func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindSchemaNotIndexed:
		return http.StatusConflict
	case models.KindValidationViolation, models.KindGenerationFailure, models.KindRetryBudgetExhausted:
		return http.StatusUnprocessableEntity
	case models.KindExecutionTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
