package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"sqlchat"
	"sqlchat/internal/api/models"
)

// ExecutorService runs validated SQL against the relational engine. Every call
// opens a fresh read-only transaction with a server-side statement timeout, so the
// engine itself is the second line of defense behind the validator. The connection
// is released on every exit path.
type ExecutorService struct {
	logger zerolog.Logger
	db     *sql.DB
}

func NewExecutorService() *ExecutorService {
	return &ExecutorService{logger: sqlchat.Logger, db: sqlchat.DB}
}

// NewExecutorServiceWithDB builds an executor over an injected connection. Used by
// tests.
func NewExecutorServiceWithDB(db *sql.DB, logger zerolog.Logger) *ExecutorService {
	return &ExecutorService{logger: logger, db: db}
}

// Execute runs one statement and returns either a truncated result set or a
// classified error. Syntax/semantic errors are retryable through the generator;
// timeouts and connectivity failures are not.
func (slf *ExecutorService) Execute(ctx context.Context, sqlText string, rowLimit int, timeout time.Duration) models.ExecutionOutcome {
	start := time.Now()

	tx, err := slf.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return failedOutcome(err, start)
	}
	defer tx.Rollback() // read-only, nothing to commit

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", timeout.Milliseconds())); err != nil {
		return failedOutcome(err, start)
	}

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		return failedOutcome(err, start)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return failedOutcome(err, start)
	}

	var out [][]string
	truncated := false
	for rows.Next() {
		if len(out) >= rowLimit {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return failedOutcome(err, start)
		}
		out = append(out, stringifyRow(values))
	}
	if err := rows.Err(); err != nil {
		return failedOutcome(err, start)
	}

	return models.ExecutionOutcome{
		Success:    true,
		Columns:    columns,
		Rows:       out,
		RowCount:   len(out),
		Truncated:  truncated,
		DurationMS: time.Since(start).Milliseconds(),
	}
}

func failedOutcome(err error, start time.Time) models.ExecutionOutcome {
	kind, message := classifyDBError(err)
	return models.ExecutionOutcome{
		ErrorKind:    kind,
		ErrorMessage: message,
		DurationMS:   time.Since(start).Milliseconds(),
	}
}

// classifyDBError maps database errors onto pipeline error kinds using the
// SQLSTATE code when the engine reports one. The message is the engine's own,
// suitable for feeding back to the generator verbatim; it never carries
// credentials.
func classifyDBError(err error) (models.ErrorKind, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "57014":
			return models.KindExecutionTimeout, "query exceeded the statement timeout"
		case strings.HasPrefix(pgErr.Code, "08"):
			return models.KindConnectivity, "database connection failed"
		default:
			return models.KindExecutionSyntax, pgErr.Message
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.KindExecutionTimeout, "query exceeded the statement timeout"
	}
	return models.KindConnectivity, fmt.Sprintf("database unavailable: %v", err)
}

func stringifyRow(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		switch val := v.(type) {
		case nil:
			out[i] = "NULL"
		case []byte:
			out[i] = string(val)
		case time.Time:
			out[i] = val.Format(time.RFC3339)
		default:
			out[i] = fmt.Sprint(val)
		}
	}
	return out
}
