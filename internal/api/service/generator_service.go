package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"sqlchat"
	"sqlchat/internal/api/models"
)

// Questions matching these are too vague to produce meaningful SQL: the pipeline
// asks for a metric instead of guessing one.
var ambiguousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)top customers\??$`),
	regexp.MustCompile(`(?i)best products\??$`),
	regexp.MustCompile(`(?i)recent orders\??$`),
	regexp.MustCompile(`(?i)performance\??$`),
}

var (
	codeFenceRe = regexp.MustCompile("(?i)```(sql)?")
	// Extraction anchors at any statement keyword, not just SELECT: a destructive
	// statement must reach the validator so the rejection names the actual violation.
	stmtStartRe = regexp.MustCompile(`(?i)\b(SELECT|WITH|INSERT|UPDATE|DELETE|DROP|ALTER|TRUNCATE|CREATE)\b`)
)

// GeneratorService builds a deterministic, schema-scoped prompt, obtains candidate
// SQL from the inference service and extracts the statement from the free-form
// response.
type GeneratorService struct {
	logger zerolog.Logger
	llm    TextGenerator
}

func NewGeneratorService(llm TextGenerator) *GeneratorService {
	return &GeneratorService{logger: sqlchat.Logger, llm: llm}
}

// CheckAmbiguity returns a clarification request when the question is too vague to
// answer. This is a control outcome, not an error: it short-circuits generation.
func (slf *GeneratorService) CheckAmbiguity(question string) (string, bool) {
	trimmed := strings.TrimSpace(question)
	for _, pattern := range ambiguousPatterns {
		if pattern.MatchString(trimmed) {
			return fmt.Sprintf(
				"Your question %q is a bit ambiguous. Could you specify the metric? For example: 'Top 5 customers by total spend' or 'Recent 10 orders'.",
				question), true
		}
	}
	return "", false
}

// Generate produces one candidate query. On a self-heal retry priorError carries
// the previous attempt's failure, appended to the prompt as corrective feedback.
func (slf *GeneratorService) Generate(ctx context.Context, question string, rctx models.RetrievalContext, priorError string, attempt int) (models.GeneratedQuery, error) {
	system := slf.buildSystemPrompt(rctx)
	user := slf.buildUserPrompt(question, priorError)

	raw, err := slf.llm.GenerateText(ctx, system, user, 0)
	if err != nil {
		return models.GeneratedQuery{Attempt: attempt}, &models.PipelineError{
			Kind:    models.KindConnectivity,
			Message: fmt.Sprintf("inference service call failed: %v", err),
		}
	}

	sqlText := ExtractSQL(raw)
	if sqlText == "" {
		return models.GeneratedQuery{RawText: raw, Attempt: attempt}, &models.PipelineError{
			Kind:    models.KindGenerationFailure,
			Message: "no SQL statement could be extracted from the model response",
		}
	}

	return models.GeneratedQuery{RawText: raw, SQL: sqlText, Attempt: attempt}, nil
}

func (slf *GeneratorService) buildSystemPrompt(rctx models.RetrievalContext) string {
	return "You are an expert SQL generator for PostgreSQL.\n" +
		"Hard rules:\n" +
		"1. ONLY generate SELECT statements.\n" +
		"2. ONLY use tables/columns from the provided schema.\n" +
		"3. NO invented columns.\n" +
		"4. NO subqueries unless absolutely necessary.\n" +
		"5. Always use table aliases (e.g., FROM customers c).\n" +
		"6. Always qualify column names with alias (e.g., c.email).\n" +
		"7. Add a LIMIT clause when the user asks for 'top N' or ranking, and in general unless the question asks for an aggregate.\n" +
		"8. Do not write any explanation. Do not use markdown. Start your response directly with SELECT.\n\n" +
		"Schema:\n" + rctx.Render() + "\n"
}

func (slf *GeneratorService) buildUserPrompt(question, priorError string) string {
	var b strings.Builder
	b.WriteString("Few-shot examples:\n")
	b.WriteString("Q: Which 5 customers spent the most?\n")
	b.WriteString("A: SELECT c.name, SUM(o.total_amount) as total_spent FROM customers c JOIN orders o ON c.customer_id = o.customer_id GROUP BY c.name ORDER BY total_spent DESC LIMIT 5;\n\n")
	b.WriteString("Q: How many orders are pending?\n")
	b.WriteString("A: SELECT COUNT(o.order_id) FROM orders o WHERE o.status = 'Pending';\n\n")

	if priorError != "" {
		b.WriteString("Your previous attempt failed with this error, correct it:\n")
		b.WriteString(priorError)
		b.WriteString("\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\nSQL Query:")
	return b.String()
}

// ExtractSQL locates the query inside a free-form model response by structural
// pattern rather than assuming the response contains nothing else: code fences are
// stripped, the statement starts at the first SQL keyword and ends at the last
// semicolon when one is present. Returns "" when no statement can be found.
func ExtractSQL(response string) string {
	clean := strings.TrimSpace(codeFenceRe.ReplaceAllString(response, ""))

	loc := stmtStartRe.FindStringIndex(clean)
	if loc == nil {
		return ""
	}
	clean = clean[loc[0]:]

	if idx := strings.LastIndex(clean, ";"); idx != -1 {
		clean = clean[:idx+1]
	}

	return strings.Join(strings.Fields(clean), " ")
}
