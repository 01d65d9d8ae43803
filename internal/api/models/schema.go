package models

import (
	"fmt"
	"strings"
)

// ColumnInfo describes a single column of an introspected table, including
// primary/foreign key flags and, for foreign keys, the referenced table/column.
type ColumnInfo struct {
	Name      string `json:"name"`
	DataType  string `json:"dataType"`
	Nullable  bool   `json:"nullable"`
	IsPrimary bool   `json:"isPrimary"`
	IsForeign bool   `json:"isForeign"`
	RefTable  string `json:"refTable,omitempty"`
	RefColumn string `json:"refColumn,omitempty"`
}

// SchemaDocument is the per-table unit stored in the vector index. Immutable once
// indexed; re-indexing regenerates all documents wholesale.
type SchemaDocument struct {
	TableName   string       `json:"tableName"`
	Description string       `json:"description"`
	Columns     []ColumnInfo `json:"columns"`
}

// Render serializes the document into the flat text form that gets embedded and
// placed into generation prompts.
func (slf SchemaDocument) Render() string {
	cols := make([]string, 0, len(slf.Columns))
	rels := make([]string, 0)
	for _, col := range slf.Columns {
		part := fmt.Sprintf("%s (%s", col.Name, col.DataType)
		if col.IsPrimary {
			part += ", PK"
		}
		if col.IsForeign && col.RefTable != "" {
			part += fmt.Sprintf(", FK→%s", col.RefTable)
			rels = append(rels, fmt.Sprintf("%s references %s.%s", col.Name, col.RefTable, col.RefColumn))
		}
		part += ")"
		cols = append(cols, part)
	}

	relationships := "None"
	if len(rels) > 0 {
		relationships = strings.Join(rels, "; ")
	}

	return fmt.Sprintf("Table: %s | Description: %s | Columns: %s | Relationships: %s",
		slf.TableName, slf.Description, strings.Join(cols, ", "), relationships)
}

// ReferencedTables returns the distinct tables this document's foreign keys point at.
func (slf SchemaDocument) ReferencedTables() []string {
	seen := make(map[string]bool)
	var out []string
	for _, col := range slf.Columns {
		if col.IsForeign && col.RefTable != "" && !seen[col.RefTable] {
			seen[col.RefTable] = true
			out = append(out, col.RefTable)
		}
	}
	return out
}

// RetrievalContext is the ordered, deduplicated set of schema documents relevant to
// one question, closed under a bounded number of foreign-key expansion rounds.
type RetrievalContext struct {
	Documents []SchemaDocument `json:"documents"`
}

func (slf RetrievalContext) IsEmpty() bool {
	return len(slf.Documents) == 0
}

func (slf RetrievalContext) HasTable(name string) bool {
	for _, doc := range slf.Documents {
		if strings.EqualFold(doc.TableName, name) {
			return true
		}
	}
	return false
}

func (slf RetrievalContext) TableNames() []string {
	names := make([]string, 0, len(slf.Documents))
	for _, doc := range slf.Documents {
		names = append(names, doc.TableName)
	}
	return names
}

// Render serializes the whole context for prompt inclusion, one table per line.
// Schema only, never row data.
func (slf RetrievalContext) Render() string {
	lines := make([]string, 0, len(slf.Documents))
	for _, doc := range slf.Documents {
		lines = append(lines, doc.Render())
	}
	return strings.Join(lines, "\n")
}
