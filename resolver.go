package seedkit

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/syssam/seedkit/schema"
)

// deferredRel is a relationship descriptor pulled out of the field mapping in
// phase 4, keyed by the field it will be reinserted under.
type deferredRel struct {
	key string
	d   *Descriptor
}

// resolve runs the seven-phase pipeline for one entity:
//
//  1. evaluate the base definition
//  2. merge active variants, in order, failing fast on unknown names
//  3. merge caller overrides with full key replacement
//  4. resolve sequence and ref descriptors, defer relationship descriptors
//  5. resolve belongs-to relations and infer foreign keys
//  6. construct the entity, then save it or assign temporary ids
//  7. resolve has-many/has-one children with the parent injected as the
//     child's inverse relation
//
// The override merge in phase 3 is what breaks relationship cycles: the
// parent injected in phase 7 replaces the child's own belongs-to descriptor
// before the child's phase 5 ever runs.
func resolve(ctx context.Context, b *Bound, overrides Fields, persist bool) (any, error) {
	f := b.factory
	sctx := b.sctx
	g := sctx.generator()

	// Phase 1: base definition.
	fields := make(Fields)
	if f.define != nil {
		for k, v := range f.define(g) {
			fields[k] = v
		}
	}

	// Phase 2: variant merge.
	for _, name := range b.variants {
		def, ok := f.variants[name]
		if !ok {
			return nil, NewUnknownVariantError(f.Name(), name, f.variantNames())
		}
		for k, v := range def(g) {
			fields[k] = v
		}
	}

	// Phase 3: caller overrides. Full replacement, descriptors included.
	for k, v := range overrides {
		fields[k] = v
	}

	// Phase 4: simple descriptors now, relations deferred. Deferred entries
	// keep their field key and are processed in sorted key order.
	var parents, children []deferredRel
	for _, k := range sortedKeys(fields) {
		d, ok := fields[k].(*Descriptor)
		if !ok || d == nil || d.kind == kindInvalid {
			continue
		}
		switch d.kind {
		case kindSequence:
			fields[k] = d.seq(sctx.nextSequence(f.typ))
		case kindRef:
			v, err := sctx.Label(d.label)
			if err != nil {
				return nil, &ResolveError{Factory: f.Name(), Field: k, Err: err}
			}
			fields[k] = v
		case kindBelongsTo:
			delete(fields, k)
			parents = append(parents, deferredRel{key: k, d: d})
		case kindHasMany, kindHasOne:
			delete(fields, k)
			children = append(children, deferredRel{key: k, d: d})
		}
	}

	// Phase 5: belongs-to resolution and foreign-key inference. A metadata
	// miss skips inference; the relation field is still assigned.
	meta, hasMeta := sctx.metadata(f.typ)
	for _, p := range parents {
		related, err := resolveParent(ctx, sctx, p.d, persist)
		if err != nil {
			return nil, &ResolveError{Factory: f.Name(), Field: p.key, Err: err}
		}
		fields[p.key] = related
		if !hasMeta {
			continue
		}
		rel, ok := meta.Relation(p.key)
		if !ok {
			continue
		}
		for _, jc := range rel.JoinColumns {
			if jc.Field == p.key {
				continue
			}
			if pk, ok := fieldValue(related, jc.ReferencedField); ok {
				fields[jc.Field] = pk
			}
		}
	}

	// Phase 6: zero-argument construction, field assignment, then either
	// persistence or temporary-id allocation.
	ev := reflect.New(f.typ)
	for _, k := range sortedKeys(fields) {
		if err := assignField(ev.Elem(), f.Name(), k, fields[k]); err != nil {
			return nil, err
		}
	}
	entity := ev.Interface()
	switch {
	case persist:
		// Save may replace relation references with stubs; snapshot every
		// populated belongs-to field and restore it afterwards. Fields that
		// arrived as plain values, from an override or an inverse injection,
		// need restoring as much as descriptor-resolved ones. Foreign-key
		// scalars and primary keys survive as the store wrote them.
		snap := make(map[string]any, len(parents))
		for _, p := range parents {
			if v, ok := fieldValue(entity, p.key); ok {
				snap[p.key] = v
			}
		}
		if hasMeta {
			for _, rel := range meta.Relations() {
				if rel.Kind != schema.BelongsToKind {
					continue
				}
				if _, ok := snap[rel.Name]; ok {
					continue
				}
				if fv := ev.Elem().FieldByName(rel.Name); fv.IsValid() && !fv.IsZero() {
					snap[rel.Name] = fv.Interface()
				}
			}
		}
		if err := sctx.store.Save(ctx, entity); err != nil {
			return nil, &ResolveError{Factory: f.Name(), Err: err}
		}
		for key, v := range snap {
			if err := assignField(ev.Elem(), f.Name(), key, v); err != nil {
				return nil, err
			}
		}
		sctx.logCreation(f.typ, entity)
	case hasMeta:
		// Unpersisted entities still need an identity for children to
		// reference: one temporary id per unset primary-key column.
		for _, pk := range meta.PrimaryKeys {
			fv := ev.Elem().FieldByName(pk)
			if !fv.IsValid() || !fv.IsZero() {
				continue
			}
			assignTempID(fv, sctx.nextTempID())
		}
	}

	// Phase 7: children, after the entity has a concrete or temporary id.
	// The parent is injected under the child's inverse relation field and the
	// descriptor's own overrides win over the injection.
	for _, ch := range children {
		childOv := make(Fields)
		if hasMeta {
			if rel, ok := meta.Relation(ch.key); ok && rel.Inverse != "" {
				childOv[rel.Inverse] = entity
			}
		}
		if ov, ok := ch.d.arg.(Fields); ok {
			for k, v := range ov {
				childOv[k] = v
			}
		}
		rb, err := boundFor(sctx, ch.d)
		if err != nil {
			return nil, &ResolveError{Factory: f.Name(), Field: ch.key, Err: err}
		}
		switch ch.d.kind {
		case kindHasMany:
			if ch.d.count < 0 {
				return nil, &ResolveError{
					Factory: f.Name(),
					Field:   ch.key,
					Err:     fmt.Errorf("has-many count %d is negative", ch.d.count),
				}
			}
			vals := make([]any, ch.d.count)
			for i := range vals {
				child, err := resolve(ctx, rb, childOv, persist)
				if err != nil {
					return nil, &ResolveError{Factory: f.Name(), Field: ch.key, Err: err}
				}
				vals[i] = child
			}
			if err := assignField(ev.Elem(), f.Name(), ch.key, vals); err != nil {
				return nil, err
			}
		case kindHasOne:
			child, err := resolve(ctx, rb, childOv, persist)
			if err != nil {
				return nil, &ResolveError{Factory: f.Name(), Field: ch.key, Err: err}
			}
			if err := assignField(ev.Elem(), f.Name(), ch.key, child); err != nil {
				return nil, err
			}
		}
	}
	return entity, nil
}

// resolveParent produces the related entity for one belongs-to descriptor,
// disambiguating the descriptor argument: Fields are creation overrides; a
// struct or pointer of the related type is an existing entity when all of its
// primary keys are set, otherwise its non-zero fields become overrides.
func resolveParent(ctx context.Context, sctx *Context, d *Descriptor, persist bool) (any, error) {
	rb, err := boundFor(sctx, d)
	if err != nil {
		return nil, err
	}
	switch a := d.arg.(type) {
	case nil:
		return resolve(ctx, rb, nil, persist)
	case Fields:
		return resolve(ctx, rb, a, persist)
	default:
		if isExistingEntity(sctx, schema.TypeOf(d.proto), a) {
			return entityPointer(a), nil
		}
		return resolve(ctx, rb, liftOverrides(a), persist)
	}
}

// boundFor returns the related factory handle for a relationship descriptor,
// applying its variant names.
func boundFor(sctx *Context, d *Descriptor) (*Bound, error) {
	rb, err := sctx.Get(d.proto)
	if err != nil {
		return nil, err
	}
	if len(d.variants) > 0 {
		rb = rb.Variant(d.variants...)
	}
	return rb, nil
}

// isExistingEntity reports whether v already identifies a persisted entity of
// type t: metadata is known, the type declares primary keys, and every
// primary-key field on v is set. A metadata miss means "treat as overrides".
func isExistingEntity(sctx *Context, t reflect.Type, v any) bool {
	meta, ok := sctx.metadata(t)
	if !ok || len(meta.PrimaryKeys) == 0 {
		return false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return false
	}
	for _, pk := range meta.PrimaryKeys {
		fv := rv.FieldByName(pk)
		if !fv.IsValid() || fv.IsZero() {
			return false
		}
	}
	return true
}

// entityPointer normalizes an entity value to a pointer, copying structs
// passed by value so relation fields can hold them.
func entityPointer(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		return v
	}
	pv := reflect.New(rv.Type())
	pv.Elem().Set(rv)
	return pv.Interface()
}

// liftOverrides turns the non-zero exported fields of a struct into an
// override mapping, mirroring how a partially filled object behaves when
// passed where overrides are expected.
func liftOverrides(v any) Fields {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	ov := make(Fields)
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		fv := rv.Field(i)
		if fv.IsZero() {
			continue
		}
		ov[f.Name] = fv.Interface()
	}
	return ov
}

// fieldValue reads a named field from an entity value or pointer.
func fieldValue(entity any, field string) (any, bool) {
	rv := reflect.ValueOf(entity)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	fv := rv.FieldByName(field)
	if !fv.IsValid() {
		return nil, false
	}
	return fv.Interface(), true
}

// assignField sets one struct field from a mapping value. A nil value zeroes
// the field. Convertible scalars are converted; a []any value targeting a
// slice field is element-wise converted to the field's element type.
func assignField(structVal reflect.Value, factory, key string, v any) error {
	fv := structVal.FieldByName(key)
	if !fv.IsValid() {
		return &UnknownFieldError{Factory: factory, Field: key}
	}
	if v == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(fv.Type()):
		fv.Set(rv)
	case fv.Kind() == reflect.Slice && rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Interface:
		out := reflect.MakeSlice(fv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ev := reflect.ValueOf(rv.Index(i).Interface())
			if !ev.IsValid() || !ev.Type().AssignableTo(fv.Type().Elem()) {
				return &AssignError{
					Factory: factory,
					Field:   key,
					Err:     fmt.Errorf("element %d (%T) is not assignable to %s", i, rv.Index(i).Interface(), fv.Type().Elem()),
				}
			}
			out.Index(i).Set(ev)
		}
		fv.Set(out)
	case convertibleScalar(rv.Type(), fv.Type()):
		fv.Set(rv.Convert(fv.Type()))
	default:
		return &AssignError{
			Factory: factory,
			Field:   key,
			Err:     fmt.Errorf("%T is not assignable to %s", v, fv.Type()),
		}
	}
	return nil
}

// convertibleScalar allows numeric widening and named-type conversions but
// rejects the int-to-string conversion the reflect package would permit.
func convertibleScalar(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	if to.Kind() == reflect.String && from.Kind() != reflect.String {
		return false
	}
	return true
}

// assignTempID writes a temporary id into a primary-key field. Signed
// integer fields take the value directly, string fields its decimal form;
// other kinds are left untouched.
func assignTempID(fv reflect.Value, id int) {
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fv.SetInt(int64(id))
	case reflect.String:
		fv.SetString(strconv.Itoa(id))
	}
}

func sortedKeys(fields Fields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
