package seedkit

// Fields maps entity field names to concrete values or descriptors. A value
// under a key fully replaces whatever an earlier layer put there, including a
// relationship descriptor.
type Fields map[string]any

// descriptorKind discriminates the descriptor variants. Only the constructor
// functions in this package can produce a non-zero kind, so a plain struct or
// map that happens to share a descriptor's shape is never mistaken for one.
type descriptorKind uint8

const (
	kindInvalid descriptorKind = iota
	kindSequence
	kindRef
	kindBelongsTo
	kindHasMany
	kindHasOne
)

// String returns the kind name.
func (k descriptorKind) String() string {
	switch k {
	case kindSequence:
		return "sequence"
	case kindRef:
		return "ref"
	case kindBelongsTo:
		return "belongs-to"
	case kindHasMany:
		return "has-many"
	case kindHasOne:
		return "has-one"
	default:
		return "invalid"
	}
}

// Descriptor is a deferred field computation placed in a Fields mapping in
// place of a concrete value: a sequence transform, a labeled reference, or a
// relationship to resolve recursively.
//
// Descriptors are built with Sequence, Ref, BelongsTo, HasMany and HasOne,
// and optionally chained with With and Variant at construction time. Once
// placed in a mapping they are treated as immutable.
type Descriptor struct {
	kind     descriptorKind
	seq      func(n int) any // sequence transform
	label    string          // labeled-reference label
	proto    any             // related entity prototype
	arg      any             // Fields overrides, or a candidate existing entity
	count    int             // has-many child count
	variants []string        // variant names applied to the related factory
}

// Sequence returns a descriptor resolved by applying fn to the factory's
// per-type counter: the first resolution for a factory receives 1, the next 2,
// and so on.
func Sequence(fn func(n int) any) *Descriptor {
	return &Descriptor{kind: kindSequence, seq: fn}
}

// Ref returns a descriptor resolved by looking up a previously labeled entity
// in the seeding context. Resolution fails if the label was never registered.
func Ref(label string) *Descriptor {
	return &Descriptor{kind: kindRef, label: label}
}

// BelongsTo returns a descriptor that resolves to an entity of the prototype's
// type, creating one through its registered factory unless With supplies an
// existing entity. The owning entity's foreign-key fields are populated from
// the related entity's primary keys using schema metadata.
func BelongsTo(prototype any) *Descriptor {
	return &Descriptor{kind: kindBelongsTo, proto: prototype}
}

// HasMany returns a descriptor that resolves to count child entities of the
// prototype's type, each created with this entity injected as the child's
// inverse relation.
func HasMany(prototype any, count int) *Descriptor {
	return &Descriptor{kind: kindHasMany, proto: prototype, count: count}
}

// HasOne returns a descriptor that resolves to a single child entity of the
// prototype's type, created with this entity injected as the child's inverse
// relation.
func HasOne(prototype any) *Descriptor {
	return &Descriptor{kind: kindHasOne, proto: prototype}
}

// With attaches an argument to a relationship descriptor and returns it.
//
// For Fields, the mapping is used as creation overrides for the related
// entity. For belongs-to, a struct or pointer of the related type is also
// accepted: when all of its primary-key fields are set (per schema metadata)
// it is used directly as an existing entity and nothing is created; otherwise
// its non-zero fields become creation overrides.
func (d *Descriptor) With(arg any) *Descriptor {
	d.arg = arg
	return d
}

// Variant appends variant names applied to the related factory before the
// related entity is created.
func (d *Descriptor) Variant(names ...string) *Descriptor {
	d.variants = append(d.variants, names...)
	return d
}

// IsDescriptor reports whether v is a descriptor produced by this package.
// Plain values and objects, including ones structurally resembling a
// descriptor, are not.
func IsDescriptor(v any) bool {
	d, ok := v.(*Descriptor)
	return ok && d != nil && d.kind != kindInvalid
}

func (d *Descriptor) isRelation() bool {
	switch d.kind {
	case kindBelongsTo, kindHasMany, kindHasOne:
		return true
	default:
		return false
	}
}
