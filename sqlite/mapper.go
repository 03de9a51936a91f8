package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/asaidimu/go-n1ql/core/persistence"
	"github.com/asaidimu/go-n1ql/core/schema"
)

// Options configures the table backing a Store.
type Options struct {
	// Table is the name of the document table.
	Table string

	// IfNotExists adds IF NOT EXISTS to the CREATE TABLE statement.
	IfNotExists bool

	// DropIfExists drops the table before creating it.
	DropIfExists bool
}

// DefaultOptions returns options that reuse an existing "documents" table.
func DefaultOptions() *Options {
	return &Options{
		Table:       "documents",
		IfNotExists: true,
	}
}

// quoteIdentifier safely quotes an identifier, such as a table or column name,
// to handle names that might be keywords or contain special characters.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *Store) tableName() string {
	return quoteIdentifier(s.options.Table)
}

// CreateTableSQL returns the DDL of the document table: one row per key with
// the JSON body, its CAS and the end of its lock lease in Unix milliseconds.
func (s *Store) CreateTableSQL() string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	if s.options.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(s.tableName() + " (\n")
	sb.WriteString("    \"key\" TEXT NOT NULL PRIMARY KEY,\n")
	sb.WriteString("    \"value\" TEXT NOT NULL,\n")
	sb.WriteString("    \"cas\" INTEGER NOT NULL,\n")
	sb.WriteString("    \"locked_until\" INTEGER NOT NULL DEFAULT 0\n")
	sb.WriteString(");")
	return sb.String()
}

// CreateTable creates the document table.
func (s *Store) CreateTable(ctx context.Context) error {
	if s.options.DropIfExists {
		if err := s.DropTable(ctx); err != nil {
			return err
		}
	}
	stmt := s.CreateTableSQL()
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute SQL statement '%s': %w", stmt, err)
	}
	return nil
}

// DropTable drops the document table if it exists.
func (s *Store) DropTable(ctx context.Context) error {
	stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s;", s.tableName())
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", s.tableName(), err)
	}
	return nil
}

// TableExists checks if the document table exists in the database.
func (s *Store) TableExists(ctx context.Context) (bool, error) {
	query := "SELECT name FROM sqlite_master WHERE type='table' AND name = ?;"

	var name string
	err := s.db.QueryRowContext(ctx, query, s.options.Table).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func encodeDocument(doc schema.Document) (string, error) {
	if doc == nil {
		doc = schema.Document{}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	return string(b), nil
}

func decodeDocument(value string) (schema.Document, error) {
	var doc schema.Document
	if err := json.Unmarshal([]byte(value), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if doc == nil {
		doc = schema.Document{}
	}
	return doc, nil
}

// mapError translates driver failures into the store error taxonomy.
func mapError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey, se.ExtendedCode == sqlite3.ErrConstraintUnique:
			return persistence.NewStoreError(op, key, persistence.ErrKeyExists)
		case se.Code == sqlite3.ErrBusy, se.Code == sqlite3.ErrLocked:
			return persistence.NewStoreError(op, key, fmt.Errorf("%w: %v", persistence.ErrTransport, err))
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return persistence.NewStoreError(op, key, fmt.Errorf("%w: %v", persistence.ErrTransport, err))
}
