package schema

import "reflect"

// SetForeignKeys copies primary-key values out of populated belongs-to
// relation fields into the foreign-key fields they are backed by, mutating
// entity in place. Relation fields that are nil or unset are skipped, as are
// join columns whose foreign-key field collides with the relation field
// itself. Stores call this before writing so that an entity wired only
// through object references still persists correct scalar columns.
func (e *Entity) SetForeignKeys(entity any) {
	rv := reflect.ValueOf(entity)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return
	}
	for _, rel := range e.Relations() {
		if rel.Kind != BelongsToKind || len(rel.JoinColumns) == 0 {
			continue
		}
		fv := rv.FieldByName(rel.Name)
		if !fv.IsValid() || fv.IsZero() {
			continue
		}
		related := fv
		for related.Kind() == reflect.Ptr {
			if related.IsNil() {
				break
			}
			related = related.Elem()
		}
		if related.Kind() != reflect.Struct {
			continue
		}
		for _, jc := range rel.JoinColumns {
			if jc.Field == rel.Name {
				continue
			}
			src := related.FieldByName(jc.ReferencedField)
			dst := rv.FieldByName(jc.Field)
			if !src.IsValid() || !dst.IsValid() || !dst.CanSet() {
				continue
			}
			switch {
			case src.Type().AssignableTo(dst.Type()):
				dst.Set(src)
			case src.Type().ConvertibleTo(dst.Type()) && !(dst.Kind() == reflect.String && src.Kind() != reflect.String):
				dst.Set(src.Convert(dst.Type()))
			}
		}
	}
}
