package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlchat/internal/api/models"
)

func TestValidator_AcceptsValidSelect(t *testing.T) {
	validator := newTestValidator()
	rctx := testContext(customersDoc(), ordersDoc())

	verdict := validator.Validate(
		"SELECT c.name, SUM(o.total_amount) AS total_spent FROM customers c JOIN orders o ON c.customer_id = o.customer_id GROUP BY c.name ORDER BY total_spent DESC LIMIT 5;",
		rctx)

	require.True(t, verdict.IsValid, "verdict: %s %s", verdict.ViolatedRule, verdict.Detail)
	assert.Empty(t, verdict.ViolatedRule)
	assert.NotContains(t, verdict.SanitizedSQL, ";")
}

func TestValidator_AcceptsUppercaseTableNames(t *testing.T) {
	validator := newTestValidator()
	rctx := testContext(customersDoc())

	verdict := validator.Validate("SELECT C.NAME FROM CUSTOMERS C LIMIT 10", rctx)

	assert.True(t, verdict.IsValid, "verdict: %s %s", verdict.ViolatedRule, verdict.Detail)
}

func TestValidator_RejectsForbiddenKeywords(t *testing.T) {
	validator := newTestValidator()
	rctx := testContext(customersDoc(), ordersDoc())

	adversarial := []string{
		"DELETE FROM orders WHERE status = 'Cancelled'",
		"delete from orders",
		"dElEtE FROM orders",
		"UPDATE customers SET name = 'x'",
		"INSERT INTO orders VALUES (1)",
		"DROP TABLE customers",
		"TRUNCATE orders",
		"ALTER TABLE customers ADD COLUMN x int",
		"CREATE TABLE evil (id int)",
		"GRANT ALL ON customers TO public",
		"SELECT * FROM customers c; DROP TABLE customers",
		"SELECT * FROM customers /* DROP */ c",
		"SELECT * FROM customers c -- DELETE everything",
		"SELECT * FROM customers c WHERE c.name = 'DROP'",
		"EXEC sp_anything",
	}

	for _, sqlText := range adversarial {
		verdict := validator.Validate(sqlText, rctx)
		require.False(t, verdict.IsValid, "should reject: %s", sqlText)
		assert.Equal(t, models.RuleKeywordBlocklist, verdict.ViolatedRule, "query: %s", sqlText)
		assert.Contains(t, verdict.Detail, "forbidden keyword")
	}
}

func TestValidator_RejectsMultipleStatements(t *testing.T) {
	validator := newTestValidator()
	rctx := testContext(customersDoc())

	verdict := validator.Validate("SELECT 1 FROM customers c; SELECT 2 FROM customers c", rctx)

	require.False(t, verdict.IsValid)
	assert.Equal(t, models.RuleStatementType, verdict.ViolatedRule)
	assert.Contains(t, verdict.Detail, "multiple statements")
}

func TestValidator_RejectsEmptyAndUnparseable(t *testing.T) {
	validator := newTestValidator()
	rctx := testContext(customersDoc())

	for _, sqlText := range []string{"", "   ", "SELECT FROM WHERE"} {
		verdict := validator.Validate(sqlText, rctx)
		require.False(t, verdict.IsValid, "should reject: %q", sqlText)
		assert.Equal(t, models.RuleStatementType, verdict.ViolatedRule)
	}
}

func TestValidator_RejectsTablesOutsideContext(t *testing.T) {
	validator := newTestValidator()
	rctx := testContext(customersDoc())

	verdict := validator.Validate("SELECT p.amount FROM payments p", rctx)

	require.False(t, verdict.IsValid)
	assert.Equal(t, models.RuleSchemaBound, verdict.ViolatedRule)
	assert.Contains(t, verdict.Detail, "payments")
}

func TestValidator_ChecksTablesInSubqueries(t *testing.T) {
	validator := newTestValidator()
	rctx := testContext(customersDoc())

	verdict := validator.Validate(
		"SELECT c.name FROM customers c WHERE c.customer_id IN (SELECT o.customer_id FROM orders o)",
		rctx)

	require.False(t, verdict.IsValid)
	assert.Equal(t, models.RuleSchemaBound, verdict.ViolatedRule)
	assert.Contains(t, verdict.Detail, "orders")
}

func TestValidator_RejectsInjectionPatterns(t *testing.T) {
	validator := newTestValidator()
	rctx := testContext(customersDoc())

	cases := map[string]string{
		"SELECT * FROM customers c WHERE c.customer_id = 1 OR 1=1": "always-true",
		"SELECT * FROM customers c WHERE c.name = 'a' OR 'x'='x'":  "always-true",
		"SELECT * FROM customers c -- anything":                    "comment sequence",
		"SELECT * FROM customers c /* hidden */":                   "comment sequence",
		"SELECT * FROM customers c WHERE c.customer_id = 0x414243": "hex-encoded",
	}

	for sqlText, want := range cases {
		verdict := validator.Validate(sqlText, rctx)
		require.False(t, verdict.IsValid, "should reject: %s", sqlText)
		assert.Equal(t, models.RuleInjectionHeuristic, verdict.ViolatedRule, "query: %s", sqlText)
		assert.Contains(t, verdict.Detail, want)
	}
}

func TestValidator_AllowsHonestEqualityFilters(t *testing.T) {
	validator := newTestValidator()
	rctx := testContext(customersDoc(), ordersDoc())

	honest := []string{
		"SELECT o.order_id FROM orders o WHERE o.status = 'Pending' OR o.status = 'Shipped'",
		"SELECT c.name FROM customers c JOIN orders o ON c.customer_id = o.customer_id",
	}

	for _, sqlText := range honest {
		verdict := validator.Validate(sqlText, rctx)
		assert.True(t, verdict.IsValid, "should accept %q: %s %s", sqlText, verdict.ViolatedRule, verdict.Detail)
	}
}

func TestSanitizeSQL(t *testing.T) {
	assert.Equal(t, "SELECT 1", SanitizeSQL("  SELECT 1 ; "))
	assert.Equal(t, "SELECT 1", SanitizeSQL("SELECT 1 -- trailing note"))
	assert.Equal(t, "SELECT 1", SanitizeSQL("SELECT /* inline */ 1"))
	assert.Equal(t, "SELECT a FROM b", SanitizeSQL("SELECT   a\n\tFROM   b"))
	assert.Equal(t, "", SanitizeSQL("-- nothing but a comment"))
}
