package models

import "fmt"

// ErrorKind classifies pipeline failures. Retryable kinds are resolved internally by
// the orchestrator's feedback loop; the rest surface to the caller.
type ErrorKind string

const (
	KindSchemaNotIndexed     ErrorKind = "schema_not_indexed"
	KindGenerationFailure    ErrorKind = "generation_failure"
	KindValidationViolation  ErrorKind = "validation_violation"
	KindExecutionSyntax      ErrorKind = "execution_syntax"
	KindExecutionTimeout     ErrorKind = "execution_timeout"
	KindConnectivity         ErrorKind = "connectivity"
	KindRetryBudgetExhausted ErrorKind = "retry_budget_exhausted"
)

// Retryable reports whether a failure of this kind may be fed back to the generator
// for a corrective attempt.
func (slf ErrorKind) Retryable() bool {
	switch slf {
	case KindGenerationFailure, KindValidationViolation, KindExecutionSyntax:
		return true
	default:
		return false
	}
}

// PipelineError is the single error type crossing stage boundaries. Message is
// user-safe: it never carries credentials or driver stack detail, only the SQL
// attempted and a human-readable cause.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	SQL     string
	Rule    string // validation rule id, set when Kind is KindValidationViolation
}

func (slf *PipelineError) Error() string {
	if slf.Rule != "" {
		return fmt.Sprintf("%s (%s): %s", slf.Kind, slf.Rule, slf.Message)
	}
	return fmt.Sprintf("%s: %s", slf.Kind, slf.Message)
}

// Validation rule identifiers, applied in order; first violation wins.
const (
	RuleStatementType      = "statement_type"
	RuleKeywordBlocklist   = "keyword_blocklist"
	RuleSchemaBound        = "schema_bound"
	RuleInjectionHeuristic = "injection_heuristic"
)

// GeneratedQuery is one generation attempt. Attempt starts at 1 and is incremented
// exactly once per self-heal retry.
type GeneratedQuery struct {
	RawText string
	SQL     string
	Attempt int
}

// ValidationVerdict is the validator's answer for one candidate query. A query that
// fails validation never reaches the executor.
type ValidationVerdict struct {
	IsValid      bool
	ViolatedRule string
	Detail       string
	SanitizedSQL string
}

// ExecutionOutcome carries either a truncated result set or a classified error.
type ExecutionOutcome struct {
	Success      bool
	Columns      []string
	Rows         [][]string
	RowCount     int
	Truncated    bool
	ErrorKind    ErrorKind
	ErrorMessage string
	DurationMS   int64
}

// AnswerResult is the terminal artifact of a successful pipeline run.
type AnswerResult struct {
	Answer   string `json:"answer"`
	SQL      string `json:"sql"`
	RowCount int    `json:"rowCount"`
}

// PipelineResult is the single typed outcome the orchestrator hands back to the API
// layer. Exactly one of Answer, Clarification, Err is set.
type PipelineResult struct {
	Question      string
	Answer        *AnswerResult
	Clarification string
	Err           *PipelineError
	Attempts      int
	TotalTimeMS   int64
}
