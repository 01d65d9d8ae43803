package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"sqlchat"
	"sqlchat/internal/api/models"
	"sqlchat/pkg"
)

// pipelineState enumerates the request state machine. The self-healing feedback
// edge routes Validating and Executing failures back to Generating; everything else
// moves strictly downstream.
type pipelineState int

const (
	stateRetrieving pipelineState = iota
	stateGenerating
	stateValidating
	stateExecuting
	stateSynthesizing
	stateDone
	stateNeedsClarification
	stateFailed
)

// PipelineService sequences retrieval, generation, validation, execution and
// synthesis for one question. It owns the retry budget and every per-request
// entity; nothing survives past the request.
type PipelineService struct {
	logger      zerolog.Logger
	retriever   *RetrieverService
	generator   *GeneratorService
	validator   *ValidatorService
	executor    *ExecutorService
	answerer    *AnswerService
	maxAttempts int
	rowLimit    int
	sqlTimeout  time.Duration
}

// NewPipelineService wires the full production pipeline from configuration:
// inference client, vector store, catalog, and the five stages.
func NewPipelineService() *PipelineService {
	cfg := sqlchat.GetConfig()

	llm := pkg.NewLLMClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.ChatModel, cfg.LLM.EmbedModel)
	store := pkg.NewVectorStore(cfg.Typesense.URL, cfg.Typesense.APIKey, cfg.LLM.EmbeddingDim)

	return &PipelineService{
		logger:      sqlchat.Logger,
		retriever:   NewRetrieverService(llm, store),
		generator:   NewGeneratorService(llm),
		validator:   NewValidatorService(),
		executor:    NewExecutorService(),
		answerer:    NewAnswerService(llm),
		maxAttempts: cfg.Pipeline.MaxAttempts,
		rowLimit:    cfg.Pipeline.MaxRows,
		sqlTimeout:  time.Duration(cfg.Pipeline.SQLTimeoutSeconds) * time.Second,
	}
}

// Ask runs the state machine to completion and returns exactly one of: an answer, a
// clarification request, or a classified error.
func (slf *PipelineService) Ask(ctx context.Context, question string) models.PipelineResult {
	start := time.Now()
	result := models.PipelineResult{Question: question}

	var (
		state      = stateRetrieving
		rctx       models.RetrievalContext
		query      models.GeneratedQuery
		verdict    models.ValidationVerdict
		outcome    models.ExecutionOutcome
		attempt    int
		priorError string
		lastErr    *models.PipelineError
	)

	if msg, ambiguous := slf.generator.CheckAmbiguity(question); ambiguous {
		state = stateNeedsClarification
		result.Clarification = msg
	}

	for state != stateDone && state != stateFailed && state != stateNeedsClarification {
		switch state {
		case stateRetrieving:
			c, err := slf.retriever.Retrieve(ctx, question)
			if err != nil {
				lastErr = asPipelineError(err)
				state = stateFailed
				continue
			}
			rctx = c
			state = stateGenerating

		case stateGenerating:
			if attempt >= slf.maxAttempts {
				lastErr = exhausted(slf.maxAttempts, lastErr)
				state = stateFailed
				continue
			}
			attempt++
			q, err := slf.generator.Generate(ctx, question, rctx, priorError, attempt)
			if err != nil {
				perr := asPipelineError(err)
				lastErr = perr
				if perr.Kind.Retryable() {
					priorError = perr.Message
					state = stateGenerating
				} else {
					state = stateFailed
				}
				continue
			}
			query = q
			state = stateValidating

		case stateValidating:
			verdict = slf.validator.Validate(query.SQL, rctx)
			if !verdict.IsValid {
				lastErr = &models.PipelineError{
					Kind:    models.KindValidationViolation,
					Rule:    verdict.ViolatedRule,
					Message: verdict.Detail,
					SQL:     query.SQL,
				}
				slf.logger.Warn().Str("rule", verdict.ViolatedRule).Str("sql", query.SQL).Msg("generated query rejected by validator")
				priorError = fmt.Sprintf("the query violated the %s rule: %s", verdict.ViolatedRule, verdict.Detail)
				state = stateGenerating
				continue
			}
			state = stateExecuting

		case stateExecuting:
			outcome = slf.executor.Execute(ctx, verdict.SanitizedSQL, slf.rowLimit, slf.sqlTimeout)
			if !outcome.Success {
				lastErr = &models.PipelineError{
					Kind:    outcome.ErrorKind,
					Message: outcome.ErrorMessage,
					SQL:     verdict.SanitizedSQL,
				}
				if outcome.ErrorKind.Retryable() {
					priorError = outcome.ErrorMessage
					state = stateGenerating
				} else {
					state = stateFailed
				}
				continue
			}
			state = stateSynthesizing

		case stateSynthesizing:
			answer, err := slf.answerer.Synthesize(ctx, question, verdict.SanitizedSQL, outcome)
			if err != nil {
				lastErr = asPipelineError(err)
				state = stateFailed
				continue
			}
			result.Answer = &models.AnswerResult{
				Answer:   answer,
				SQL:      verdict.SanitizedSQL,
				RowCount: outcome.RowCount,
			}
			state = stateDone
		}
	}

	result.Attempts = attempt
	result.TotalTimeMS = time.Since(start).Milliseconds()
	if state == stateFailed {
		result.Err = lastErr
		slf.logger.Error().Str("kind", string(lastErr.Kind)).Str("sql", lastErr.SQL).Int("attempts", attempt).Msg(lastErr.Message)
	}
	return result
}

// exhausted wraps the last underlying error once the generation budget is spent.
func exhausted(maxAttempts int, last *models.PipelineError) *models.PipelineError {
	wrapped := &models.PipelineError{
		Kind:    models.KindRetryBudgetExhausted,
		Message: fmt.Sprintf("no valid query after %d attempts", maxAttempts),
	}
	if last != nil {
		wrapped.Message = fmt.Sprintf("no valid query after %d attempts; last error: %s", maxAttempts, last.Message)
		wrapped.SQL = last.SQL
	}
	return wrapped
}

func asPipelineError(err error) *models.PipelineError {
	var perr *models.PipelineError
	if errors.As(err, &perr) {
		return perr
	}
	return &models.PipelineError{Kind: models.KindConnectivity, Message: err.Error()}
}
