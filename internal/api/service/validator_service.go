package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/blastrain/vitess-sqlparser/sqlparser"
	"github.com/rs/zerolog"

	"sqlchat"
	"sqlchat/internal/api/models"
)

// Data-modifying and DDL keywords are rejected anywhere in the candidate text,
// comments and string literals included. The scan runs on both the raw and the
// comment-stripped text as a defense-in-depth pair.
var forbiddenKeywordRe = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|TRUNCATE|CREATE|EXEC|EXECUTE|GRANT|REVOKE|REPLACE|MERGE)\b`)

var (
	lineCommentRe  = regexp.MustCompile(`--[^\n]*`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)

	// Always-true tautologies of the OR x=x family, quoted or not.
	tautologyRe  = regexp.MustCompile(`(?i)\bOR\s+'?([A-Za-z0-9]+)'?\s*=\s*'?([A-Za-z0-9]+)'?`)
	hexPayloadRe = regexp.MustCompile(`(?i)\b0x[0-9a-f]+\b`)
)

// ValidatorService is the safety firewall between the generator and the executor.
// The generator is untrusted: every candidate passes the full rule chain and a
// failing verdict never reaches the database.
type ValidatorService struct {
	logger zerolog.Logger
}

func NewValidatorService() *ValidatorService {
	return &ValidatorService{logger: sqlchat.Logger}
}

// Validate applies the rule chain in order; the first violation wins. The keyword
// scan runs before parsing so a data-modifying statement is always reported as a
// blocklist hit, however it is disguised.
func (slf *ValidatorService) Validate(sqlText string, rctx models.RetrievalContext) models.ValidationVerdict {
	sanitized := SanitizeSQL(sqlText)
	if sanitized == "" {
		return violation(models.RuleStatementType, "empty query")
	}

	for _, text := range []string{sqlText, sanitized} {
		if kw := forbiddenKeywordRe.FindString(text); kw != "" {
			return violation(models.RuleKeywordBlocklist, fmt.Sprintf("forbidden keyword found: %s", strings.ToUpper(kw)))
		}
	}

	// Comments were stripped by SanitizeSQL; any remaining semicolon means a
	// stacked second statement.
	if strings.Contains(sanitized, ";") {
		return violation(models.RuleStatementType, "multiple statements are not allowed")
	}

	stmt, err := sqlparser.Parse(sanitized)
	if err != nil {
		return violation(models.RuleStatementType, fmt.Sprintf("not a valid single SQL statement: %v", err))
	}
	if _, ok := stmt.(*sqlparser.Select); !ok {
		return violation(models.RuleStatementType, "only SELECT queries are allowed")
	}

	for _, table := range extractTables(stmt) {
		if !rctx.HasTable(table) {
			return violation(models.RuleSchemaBound, fmt.Sprintf("table %q is not in the retrieved schema context", table))
		}
	}

	if detail := findInjectionPattern(sqlText, sanitized); detail != "" {
		return violation(models.RuleInjectionHeuristic, detail)
	}

	return models.ValidationVerdict{IsValid: true, SanitizedSQL: sanitized}
}

func violation(rule, detail string) models.ValidationVerdict {
	return models.ValidationVerdict{ViolatedRule: rule, Detail: detail}
}

// SanitizeSQL strips comments, the trailing semicolon and redundant whitespace.
func SanitizeSQL(sqlText string) string {
	out := lineCommentRe.ReplaceAllString(sqlText, "")
	out = blockCommentRe.ReplaceAllString(out, "")
	out = strings.TrimSpace(out)
	out = strings.TrimSuffix(out, ";")
	return strings.Join(strings.Fields(out), " ")
}

// extractTables collects every table referenced anywhere in the statement,
// subqueries included, by walking the AST for table expressions. Aliases resolve to
// the real table name.
func extractTables(stmt sqlparser.Statement) []string {
	seen := make(map[string]bool)
	var tables []string

	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		if aliased, ok := node.(*sqlparser.AliasedTableExpr); ok {
			if tn, ok := aliased.Expr.(sqlparser.TableName); ok {
				name := tn.Name.String()
				key := strings.ToLower(name)
				if name != "" && !seen[key] {
					seen[key] = true
					tables = append(tables, name)
				}
			}
		}
		return true, nil
	}, stmt)

	return tables
}

// findInjectionPattern flags shapes indicative of injection rather than honest
// generation: always-true tautologies, comment-terminated fragments and hex-encoded
// payloads.
func findInjectionPattern(raw, sanitized string) string {
	if m := tautologyRe.FindStringSubmatch(sanitized); m != nil && strings.EqualFold(m[1], m[2]) {
		return fmt.Sprintf("always-true condition: OR %s=%s", m[1], m[2])
	}
	if strings.Contains(raw, "--") || strings.Contains(raw, "/*") {
		return "comment sequence in query text"
	}
	if hexPayloadRe.MatchString(sanitized) {
		return "hex-encoded payload"
	}
	return ""
}
