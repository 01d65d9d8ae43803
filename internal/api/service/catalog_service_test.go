package service

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var introspectionColumns = []string{
	"table_name", "table_description", "column_name", "data_type", "is_nullable",
	"column_description", "constraint_type", "foreign_table_name", "foreign_column_name",
}

func newCatalogMock(t *testing.T) (*CatalogService, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCatalogServiceWithDB(db, zerolog.Nop()), mock, db
}

func expectShopIntrospection(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("FROM information_schema.columns").
		WillReturnRows(sqlmock.NewRows(introspectionColumns).
			AddRow("customers", "Registered customers", "customer_id", "integer", "NO", nil, "PRIMARY KEY", nil, nil).
			AddRow("customers", "Registered customers", "name", "text", "YES", nil, nil, nil, nil).
			AddRow("orders", nil, "order_id", "integer", "NO", nil, "PRIMARY KEY", nil, nil).
			AddRow("orders", nil, "customer_id", "integer", "NO", nil, "FOREIGN KEY", "customers", "customer_id").
			AddRow("orders", nil, "status", "text", "YES", nil, nil, nil, nil))
}

func TestCatalog_RefreshBuildsSnapshot(t *testing.T) {
	catalog, mock, _ := newCatalogMock(t)
	expectShopIntrospection(mock)

	require.NoError(t, catalog.Refresh(context.Background()))

	docs := catalog.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, "customers", docs[0].TableName)
	assert.Equal(t, "Registered customers", docs[0].Description)
	assert.Equal(t, "orders", docs[1].TableName)

	orders, ok := catalog.Document("orders")
	require.True(t, ok)
	require.Len(t, orders.Columns, 3)
	assert.True(t, orders.Columns[0].IsPrimary)
	assert.True(t, orders.Columns[1].IsForeign)
	assert.Equal(t, "customers", orders.Columns[1].RefTable)
	assert.Equal(t, "customer_id", orders.Columns[1].RefColumn)
	assert.True(t, orders.Columns[2].Nullable)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_RefreshReplacesSnapshot(t *testing.T) {
	catalog, mock, _ := newCatalogMock(t)

	expectShopIntrospection(mock)
	require.NoError(t, catalog.Refresh(context.Background()))

	mock.ExpectQuery("FROM information_schema.columns").
		WillReturnRows(sqlmock.NewRows(introspectionColumns).
			AddRow("products", nil, "product_id", "integer", "NO", nil, "PRIMARY KEY", nil, nil))
	require.NoError(t, catalog.Refresh(context.Background()))

	docs := catalog.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "products", docs[0].TableName)

	_, ok := catalog.Document("orders")
	assert.False(t, ok, "old snapshot must be fully replaced")
}

func TestCatalog_IntrospectionFailureSurfaces(t *testing.T) {
	catalog, mock, _ := newCatalogMock(t)

	mock.ExpectQuery("FROM information_schema.columns").
		WillReturnError(sql.ErrConnDone)

	err := catalog.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "introspection failed")
}
