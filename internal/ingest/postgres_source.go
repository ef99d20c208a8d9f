package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/odyssey-erp/odyssey-receivables/internal/analytics"
)

// Querier is the subset of pgxpool.Pool used by PostgresSource.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Default relations holding the compact ledgers.
const (
	OpenItemsRelation = "receivables_open_items"
	SalesRelation     = "receivables_sales"
)

// PostgresSource reads a ledger relation whose columns carry the labels of a
// compact schema. Every column is read as text and typed later by Normalize.
type PostgresSource struct {
	db       Querier
	relation string
	schema   analytics.Schema
}

// NewPostgresSource builds a source over relation laid out as schema.
func NewPostgresSource(db Querier, relation string, schema analytics.Schema) *PostgresSource {
	return &PostgresSource{db: db, relation: relation, schema: schema}
}

func (s *PostgresSource) statement() string {
	labels := s.schema.Labels()
	cols := make([]string, len(labels))
	for i, label := range labels {
		cols[i] = pgx.Identifier{label}.Sanitize() + "::text"
	}
	ident := pgx.Identifier(strings.Split(s.relation, "."))
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), ident.Sanitize())
}

// Fetch runs the select and renders NULLs as empty cells.
func (s *PostgresSource) Fetch(ctx context.Context) (analytics.RawTable, error) {
	rows, err := s.db.Query(ctx, s.statement())
	if err != nil {
		return analytics.RawTable{}, fmt.Errorf("ingest: query %s: %w", s.relation, err)
	}
	defer rows.Close()

	width := len(s.schema.Columns)
	table := analytics.RawTable{Name: s.schema.Name, Header: s.schema.Labels(), Rows: make([][]string, 0)}
	for rows.Next() {
		cells := make([]pgtype.Text, width)
		dest := make([]any, width)
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return analytics.RawTable{}, fmt.Errorf("ingest: scan %s: %w", s.relation, err)
		}
		record := make([]string, width)
		for i, cell := range cells {
			if cell.Valid {
				record[i] = cell.String
			}
		}
		table.Rows = append(table.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return analytics.RawTable{}, fmt.Errorf("ingest: iterate %s: %w", s.relation, err)
	}
	return table, nil
}

func (s *PostgresSource) String() string { return "postgres:" + s.relation }
