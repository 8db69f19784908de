// Package schema holds the static entity metadata that seedkit consults when
// wiring relationships: primary-key fields, foreign-key join columns, and
// inverse relation names.
//
// Metadata is registered up front with fluent builders and never reflected
// from the database:
//
//	reg, err := schema.NewRegistry(
//	    schema.Describe(User{}).
//	        Keys("ID").
//	        Relations(
//	            schema.HasMany("Pets", Pet{}).Inverse("Owner"),
//	        ),
//	    schema.Describe(Pet{}).
//	        Relations(
//	            schema.BelongsTo("Owner", User{}).Inverse("Pets"),
//	        ),
//	)
//
// Anything left unspecified is inferred from names: table names are the
// pluralized snake-case of the type name, column names the snake-case of the
// field name, and a belongs-to relation "Owner" is backed by the foreign-key
// field "OwnerID" referencing the target's first primary key.
package schema

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/go-openapi/inflect"
)

// RelKind is the cardinality of a relation as seen from its owning entity.
type RelKind uint8

// Relation kinds.
const (
	BelongsToKind RelKind = iota + 1
	HasManyKind
	HasOneKind
)

// String returns the kind name.
func (k RelKind) String() string {
	switch k {
	case BelongsToKind:
		return "belongs-to"
	case HasManyKind:
		return "has-many"
	case HasOneKind:
		return "has-one"
	default:
		return fmt.Sprintf("RelKind(%d)", k)
	}
}

// JoinColumn maps one foreign-key field on the owning entity to the
// primary-key field it references on the related entity. Compound keys use
// one JoinColumn per key column.
type JoinColumn struct {
	Field           string // Foreign-key field on the owning entity
	ReferencedField string // Referenced primary-key field on the related entity
}

// Relation is the resolved metadata for one relation field.
type Relation struct {
	Name        string       // Field name on the owning entity
	Kind        RelKind      // Cardinality
	Target      reflect.Type // Related entity struct type
	JoinColumns []JoinColumn // Foreign-key mapping, belongs-to/has-one owner side
	Inverse     string       // Inverse relation field on the target, empty for one-directional relations
}

// Entity is the resolved metadata for one entity type.
type Entity struct {
	Type        reflect.Type      // Entity struct type
	Table       string            // Storage table name
	PrimaryKeys []string          // Primary-key field names, in declaration order
	Columns     map[string]string // Scalar field name to column name
	relations   map[string]*Relation
}

// Relation returns the relation metadata for the given field name.
func (e *Entity) Relation(name string) (*Relation, bool) {
	r, ok := e.relations[name]
	return r, ok
}

// Relations returns all relations in field-name order.
func (e *Entity) Relations() []*Relation {
	names := make([]string, 0, len(e.relations))
	for n := range e.relations {
		names = append(names, n)
	}
	sort.Strings(names)
	rels := make([]*Relation, len(names))
	for i, n := range names {
		rels[i] = e.relations[n]
	}
	return rels
}

// Provider is the metadata lookup surface the resolution engine consumes.
// A missing entity type is a soft miss, not an error.
type Provider interface {
	Lookup(entityType reflect.Type) (*Entity, bool)
}

// Registry is an immutable Provider built from entity builders.
type Registry struct {
	types map[reflect.Type]*Entity
}

// Lookup implements Provider.
func (r *Registry) Lookup(entityType reflect.Type) (*Entity, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.types[TypeOf(entityType)]
	return e, ok
}

// TypeOf normalizes a prototype value or reflect.Type to the underlying
// struct type, unwrapping any level of pointers.
func TypeOf(v any) reflect.Type {
	t, ok := v.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(v)
	}
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// NewRegistry resolves the given builders into a Registry, applying name
// inference for everything left unspecified.
func NewRegistry(entities ...*EntityBuilder) (*Registry, error) {
	reg := &Registry{types: make(map[reflect.Type]*Entity, len(entities))}
	for _, b := range entities {
		e, err := b.resolve()
		if err != nil {
			return nil, err
		}
		if _, ok := reg.types[e.Type]; ok {
			return nil, fmt.Errorf("schema: entity type %s described twice", e.Type.Name())
		}
		reg.types[e.Type] = e
	}
	return reg, nil
}

// MustRegistry is like NewRegistry but panics on error. It simplifies
// package-level registry variables in tests and seeders.
func MustRegistry(entities ...*EntityBuilder) *Registry {
	reg, err := NewRegistry(entities...)
	if err != nil {
		panic(err)
	}
	return reg
}

// EntityBuilder accumulates the description of one entity type.
type EntityBuilder struct {
	typ     reflect.Type
	table   string
	keys    []string
	columns map[string]string
	rels    []*RelationBuilder
	err     error
}

// Describe starts the description of an entity type from a prototype value,
// e.g. schema.Describe(User{}).
func Describe(prototype any) *EntityBuilder {
	b := &EntityBuilder{columns: make(map[string]string)}
	b.typ = TypeOf(prototype)
	if b.typ == nil || b.typ.Kind() != reflect.Struct {
		b.err = fmt.Errorf("schema: prototype %T is not a struct", prototype)
	}
	return b
}

// Table overrides the inferred table name.
func (b *EntityBuilder) Table(name string) *EntityBuilder {
	b.table = name
	return b
}

// Keys sets the primary-key field names. Defaults to "ID" when the entity
// declares such a field.
func (b *EntityBuilder) Keys(fields ...string) *EntityBuilder {
	b.keys = fields
	return b
}

// Column overrides the inferred column name for one field.
func (b *EntityBuilder) Column(field, column string) *EntityBuilder {
	b.columns[field] = column
	return b
}

// Relations declares the entity's relation fields.
func (b *EntityBuilder) Relations(rels ...*RelationBuilder) *EntityBuilder {
	b.rels = append(b.rels, rels...)
	return b
}

func (b *EntityBuilder) resolve() (*Entity, error) {
	if b.err != nil {
		return nil, b.err
	}
	e := &Entity{
		Type:      b.typ,
		Table:     b.table,
		Columns:   make(map[string]string),
		relations: make(map[string]*Relation, len(b.rels)),
	}
	if e.Table == "" {
		e.Table = inflect.Underscore(inflect.Pluralize(b.typ.Name()))
	}
	for _, rb := range b.rels {
		rel, err := rb.resolve(b.typ)
		if err != nil {
			return nil, err
		}
		if _, ok := e.relations[rel.Name]; ok {
			return nil, fmt.Errorf("schema: relation %s.%s declared twice", b.typ.Name(), rel.Name)
		}
		e.relations[rel.Name] = rel
	}
	e.PrimaryKeys = b.keys
	if len(e.PrimaryKeys) == 0 {
		if _, ok := b.typ.FieldByName("ID"); ok {
			e.PrimaryKeys = []string{"ID"}
		}
	}
	for _, k := range e.PrimaryKeys {
		if _, ok := b.typ.FieldByName(k); !ok {
			return nil, fmt.Errorf("schema: entity type %s has no primary-key field %q", b.typ.Name(), k)
		}
	}
	// Scalar columns: every exported non-relation field.
	for i := 0; i < b.typ.NumField(); i++ {
		f := b.typ.Field(i)
		if !f.IsExported() {
			continue
		}
		if _, ok := e.relations[f.Name]; ok {
			continue
		}
		col, ok := b.columns[f.Name]
		if !ok {
			col = inflect.Underscore(f.Name)
		}
		e.Columns[f.Name] = col
	}
	return e, nil
}

// RelationBuilder accumulates the description of one relation field.
type RelationBuilder struct {
	name    string
	kind    RelKind
	target  reflect.Type
	joins   []JoinColumn
	inverse string
	err     error
}

func newRelation(name string, kind RelKind, target any) *RelationBuilder {
	b := &RelationBuilder{name: name, kind: kind}
	b.target = TypeOf(target)
	if b.target == nil || b.target.Kind() != reflect.Struct {
		b.err = fmt.Errorf("schema: relation %q target %T is not a struct", name, target)
	}
	return b
}

// BelongsTo declares a many-to-one relation field referencing the target.
func BelongsTo(field string, target any) *RelationBuilder {
	return newRelation(field, BelongsToKind, target)
}

// HasMany declares a one-to-many relation field holding a slice of targets.
func HasMany(field string, target any) *RelationBuilder {
	return newRelation(field, HasManyKind, target)
}

// HasOne declares a one-to-one relation field holding a single target whose
// foreign key lives on the target side.
func HasOne(field string, target any) *RelationBuilder {
	return newRelation(field, HasOneKind, target)
}

// Inverse names the relation field on the target entity that points back at
// the owner. Leave unset for intentionally one-directional relations.
func (b *RelationBuilder) Inverse(field string) *RelationBuilder {
	b.inverse = field
	return b
}

// Columns overrides the inferred foreign-key mapping. Compound keys pass one
// JoinColumn per key column.
func (b *RelationBuilder) Columns(joins ...JoinColumn) *RelationBuilder {
	b.joins = joins
	return b
}

func (b *RelationBuilder) resolve(owner reflect.Type) (*Relation, error) {
	if b.err != nil {
		return nil, b.err
	}
	if _, ok := owner.FieldByName(b.name); !ok {
		return nil, fmt.Errorf("schema: entity type %s has no relation field %q", owner.Name(), b.name)
	}
	rel := &Relation{
		Name:        b.name,
		Kind:        b.kind,
		Target:      b.target,
		JoinColumns: b.joins,
		Inverse:     b.inverse,
	}
	if b.kind == BelongsToKind && len(rel.JoinColumns) == 0 {
		// Infer "Owner" -> {Field: "OwnerID", ReferencedField: first target key}.
		ref := "ID"
		fk := b.name + "ID"
		if _, ok := owner.FieldByName(fk); ok {
			rel.JoinColumns = []JoinColumn{{Field: fk, ReferencedField: ref}}
		}
	}
	for _, jc := range rel.JoinColumns {
		if _, ok := owner.FieldByName(jc.Field); !ok {
			return nil, fmt.Errorf("schema: entity type %s has no foreign-key field %q for relation %q", owner.Name(), jc.Field, b.name)
		}
	}
	return rel, nil
}
