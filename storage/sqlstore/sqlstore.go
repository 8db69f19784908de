// Package sqlstore provides a database/sql-backed seedkit.Store. INSERT and
// DELETE statements are generated from the schema registry; the package is
// driver-agnostic and only differs per dialect in placeholder style and how
// generated keys are read back.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/syssam/seedkit/schema"
)

// Supported dialects.
const (
	SQLite   = "sqlite"
	MySQL    = "mysql"
	Postgres = "postgres"
)

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores,
// dots for schema.name).
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// ExecQuerier is the subset of database/sql methods the store needs. Both
// *sql.DB and *sql.Tx satisfy it, so a transaction-scoped store is just
// store.WithConn(tx).
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists entities through a SQL connection using registered schema
// metadata. Entities of a type absent from the registry cannot be saved.
type Store struct {
	conn    ExecQuerier
	meta    schema.Provider
	dialect string
}

// Option configures a Store.
type Option func(*Store)

// WithDialect sets the SQL dialect. Defaults to SQLite.
func WithDialect(dialect string) Option {
	return func(s *Store) {
		s.dialect = dialect
	}
}

// New returns a Store writing through conn.
func New(conn ExecQuerier, meta schema.Provider, opts ...Option) *Store {
	s := &Store{conn: conn, meta: meta, dialect: SQLite}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithConn returns a copy of the store bound to another connection, typically
// a *sql.Tx. The seeding context pairs this with Context.WithStore for
// transaction-scoped seeding.
func (s *Store) WithConn(conn ExecQuerier) *Store {
	clone := *s
	clone.conn = conn
	return &clone
}

// Save inserts the entity and reads back its generated primary key when the
// key field was left unset. Foreign-key columns are populated from relation
// references before the insert.
func (s *Store) Save(ctx context.Context, entity any) error {
	t := schema.TypeOf(entity)
	meta, ok := s.meta.Lookup(t)
	if !ok {
		return fmt.Errorf("sqlstore: no schema registered for entity type %s", typeName(t))
	}
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("sqlstore: Save expects a struct pointer, got %T", entity)
	}
	meta.SetForeignKeys(entity)

	autoField := autoKeyField(meta, rv.Elem())
	var cols []string
	var args []any
	for _, field := range sortedFields(meta) {
		if field == autoField {
			continue
		}
		col := meta.Columns[field]
		if !isValidIdentifier(col) {
			return fmt.Errorf("sqlstore: invalid column name %q", col)
		}
		cols = append(cols, col)
		args = append(args, rv.Elem().FieldByName(field).Interface())
	}
	if !isValidIdentifier(meta.Table) {
		return fmt.Errorf("sqlstore: invalid table name %q", meta.Table)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		meta.Table, strings.Join(cols, ", "), s.placeholders(len(cols)))
	if autoField == "" {
		if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("sqlstore: insert %s: %w", meta.Table, err)
		}
		return nil
	}
	fv := rv.Elem().FieldByName(autoField)
	if s.dialect == Postgres {
		query += fmt.Sprintf(" RETURNING %s", meta.Columns[autoField])
		var id int64
		if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return fmt.Errorf("sqlstore: insert %s: %w", meta.Table, err)
		}
		fv.SetInt(id)
		return nil
	}
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlstore: insert %s: %w", meta.Table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlstore: insert %s: reading generated key: %w", meta.Table, err)
	}
	fv.SetInt(id)
	return nil
}

// Remove deletes the entity by primary key.
func (s *Store) Remove(ctx context.Context, entity any) error {
	t := schema.TypeOf(entity)
	meta, ok := s.meta.Lookup(t)
	if !ok {
		return fmt.Errorf("sqlstore: no schema registered for entity type %s", typeName(t))
	}
	if len(meta.PrimaryKeys) == 0 {
		return fmt.Errorf("sqlstore: entity type %s has no primary keys", typeName(t))
	}
	rv := reflect.ValueOf(entity)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return fmt.Errorf("sqlstore: Remove got a nil %T", entity)
		}
		rv = rv.Elem()
	}
	var preds []string
	var args []any
	for i, pk := range meta.PrimaryKeys {
		col := meta.Columns[pk]
		if !isValidIdentifier(col) {
			return fmt.Errorf("sqlstore: invalid column name %q", col)
		}
		preds = append(preds, fmt.Sprintf("%s = %s", col, s.placeholder(i+1)))
		args = append(args, rv.FieldByName(pk).Interface())
	}
	if !isValidIdentifier(meta.Table) {
		return fmt.Errorf("sqlstore: invalid table name %q", meta.Table)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", meta.Table, strings.Join(preds, " AND "))
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlstore: delete %s: %w", meta.Table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("sqlstore: delete %s: no matching row", meta.Table)
	}
	return nil
}

// autoKeyField returns the single integer primary-key field whose value is
// still zero, meaning the database generates it. Compound and pre-assigned
// keys are inserted as ordinary columns.
func autoKeyField(meta *schema.Entity, rv reflect.Value) string {
	if len(meta.PrimaryKeys) != 1 {
		return ""
	}
	pk := meta.PrimaryKeys[0]
	fv := rv.FieldByName(pk)
	if !fv.IsValid() || !fv.IsZero() {
		return ""
	}
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return pk
	default:
		return ""
	}
}

func sortedFields(meta *schema.Entity) []string {
	fields := make([]string, 0, len(meta.Columns))
	for f := range meta.Columns {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (s *Store) placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = s.placeholder(i + 1)
	}
	return strings.Join(ps, ", ")
}

func (s *Store) placeholder(n int) string {
	if s.dialect == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}
