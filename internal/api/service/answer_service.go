package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"sqlchat"
	"sqlchat/internal/api/models"
)

const answerSystemPrompt = "You are a helpful data analyst. Summarize query results in clear, conversational language. " +
	"Use specific numbers and names from the data. Answer the user's question directly. " +
	"Do not add information not present in the data. " +
	"Respond in plain text only, no markdown formatting."

// AnswerService turns a result set back into a natural-language answer. Only a
// bounded sample of rows reaches the synthesis prompt.
type AnswerService struct {
	logger     zerolog.Logger
	llm        TextGenerator
	sampleRows int
}

func NewAnswerService(llm TextGenerator) *AnswerService {
	return &AnswerService{
		logger:     sqlchat.Logger,
		llm:        llm,
		sampleRows: sqlchat.GetConfig().Pipeline.AnswerSampleRows,
	}
}

// Synthesize produces the final answer text. Zero rows get a direct "no matching
// data" statement instead of an invented one.
func (slf *AnswerService) Synthesize(ctx context.Context, question, sqlText string, outcome models.ExecutionOutcome) (string, error) {
	if outcome.RowCount == 0 {
		return "I ran the query but found no matching data. You might want to check whether the data exists for that specific criteria.", nil
	}

	prompt := fmt.Sprintf("Question: %s\nSQL used: %s\nResults:\n%s\n\nProvide a 2-4 sentence summary answering the question.",
		question, sqlText, formatRowSample(outcome.Columns, outcome.Rows, slf.sampleRows))

	answer, err := slf.llm.GenerateText(ctx, answerSystemPrompt, prompt, 0.3)
	if err != nil {
		return "", &models.PipelineError{
			Kind:    models.KindConnectivity,
			Message: fmt.Sprintf("answer synthesis failed: %v", err),
			SQL:     sqlText,
		}
	}

	answer = strings.TrimSpace(answer)
	if outcome.Truncated {
		answer += fmt.Sprintf(" (Note: results were truncated to %d rows.)", outcome.RowCount)
	}
	return answer, nil
}

// formatRowSample renders up to limit rows in a compact CSV-like form for the
// prompt.
func formatRowSample(columns []string, rows [][]string, limit int) string {
	if len(rows) == 0 {
		return "No data"
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, strings.Join(columns, ","))
	for _, row := range rows {
		lines = append(lines, strings.Join(row, ","))
	}
	return strings.Join(lines, "\n")
}
