// Package memstore provides an in-memory seedkit.Store. It assigns
// auto-increment primary keys, tracks saved entities per type, and is the
// default collaborator for tests that never touch a database.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"sync"

	"github.com/syssam/seedkit/schema"
)

// Store is an in-memory persistence collaborator. Saved entities are kept in
// per-type tables in insertion order. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	meta   schema.Provider
	nextID map[reflect.Type]int64
	rows   map[reflect.Type][]any
}

// Option configures a Store.
type Option func(*Store)

// WithSchema supplies metadata used to pick primary-key fields and populate
// foreign keys from relation references. Without it the field named "ID" is
// assumed to be the key.
func WithSchema(p schema.Provider) Option {
	return func(s *Store) {
		s.meta = p
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		nextID: make(map[reflect.Type]int64),
		rows:   make(map[reflect.Type][]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save assigns primary keys to unset key fields, copies foreign keys from
// populated relation references, and appends the entity to its type's table.
func (s *Store) Save(ctx context.Context, entity any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := schema.TypeOf(entity)
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Ptr || t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("memstore: Save expects a struct pointer, got %T", entity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	keys := []string{"ID"}
	if s.meta != nil {
		if meta, ok := s.meta.Lookup(t); ok {
			meta.SetForeignKeys(entity)
			keys = meta.PrimaryKeys
		}
	}
	for _, key := range keys {
		fv := rv.Elem().FieldByName(key)
		if !fv.IsValid() || !fv.IsZero() {
			continue
		}
		s.nextID[t]++
		switch fv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			fv.SetInt(s.nextID[t])
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			fv.SetUint(uint64(s.nextID[t]))
		case reflect.String:
			fv.SetString(strconv.FormatInt(s.nextID[t], 10))
		}
	}
	s.rows[t] = append(s.rows[t], entity)
	return nil
}

// Remove deletes a previously saved entity, matched by pointer identity.
func (s *Store) Remove(ctx context.Context, entity any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := schema.TypeOf(entity)
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows[t]
	for i, row := range rows {
		if row == entity {
			s.rows[t] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("memstore: entity %T not tracked", entity)
}

// All returns the saved entities of the prototype's type in insertion order.
func (s *Store) All(prototype any) []any {
	t := schema.TypeOf(prototype)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.rows[t]))
	copy(out, s.rows[t])
	return out
}

// Len returns how many entities of the prototype's type are saved.
func (s *Store) Len(prototype any) int {
	t := schema.TypeOf(prototype)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[t])
}
