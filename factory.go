package seedkit

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/seedkit/gen"
	"github.com/syssam/seedkit/schema"
)

// Definition produces the base field mapping for one entity. The generator is
// an opaque collaborator supplied by the seeding context; the engine never
// inspects the values it produces.
type Definition func(g *gen.Generator) Fields

// Factory declares, for one entity type, how to synthesize its fields and
// relationships. A Factory is immutable after Define; all per-session state
// (sequence counters, caches) lives in the seeding context it is used with.
type Factory struct {
	typ      reflect.Type
	define   Definition
	variants map[string]Definition
}

// FactoryOption configures a Factory at definition time.
type FactoryOption func(*Factory)

// WithVariant registers a named variant: a partial field mapping merged on
// top of the base definition when the variant is selected.
func WithVariant(name string, def Definition) FactoryOption {
	return func(f *Factory) {
		f.variants[name] = def
	}
}

// Define declares a factory for the prototype's entity type.
//
//	users := seedkit.Define(User{}, func(g *gen.Generator) seedkit.Fields {
//	    return seedkit.Fields{
//	        "Name":  g.Name(),
//	        "Email": seedkit.Sequence(func(n int) any {
//	            return fmt.Sprintf("user%d@test.com", n)
//	        }),
//	    }
//	})
//
// Entities are constructed with a zero-argument reflect.New and every mapping
// key is assigned after construction, so the entity type needs no constructor.
func Define(prototype any, def Definition, opts ...FactoryOption) *Factory {
	t := schema.TypeOf(prototype)
	if t == nil || t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("seedkit: Define prototype %T is not a struct", prototype))
	}
	f := &Factory{
		typ:      t,
		define:   def,
		variants: make(map[string]Definition),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Type returns the entity struct type the factory produces.
func (f *Factory) Type() reflect.Type { return f.typ }

// Name returns the entity type name, used in error messages.
func (f *Factory) Name() string { return f.typ.Name() }

// variantNames returns the declared variant names, sorted.
func (f *Factory) variantNames() []string {
	names := make([]string, 0, len(f.variants))
	for n := range f.variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Bound is a factory bound to a seeding context with an accumulated list of
// active variants. Bound values are cheap immutable handles: Variant returns
// an extended copy and never mutates the receiver, so a Bound obtained from a
// context can be shared freely.
type Bound struct {
	factory  *Factory
	sctx     *Context
	variants []string
}

// Variant returns a copy of the handle with the given variant names appended
// to its active list. Chained calls accumulate; unknown names fail at
// build/persist time, before any entity is constructed.
func (b *Bound) Variant(names ...string) *Bound {
	clone := &Bound{factory: b.factory, sctx: b.sctx}
	clone.variants = append(clone.variants, b.variants...)
	clone.variants = append(clone.variants, names...)
	return clone
}

// BuildOne resolves a single entity without persisting it. Primary-key fields
// left unset receive temporary negative ids so relationships can be wired
// without a database round trip.
func (b *Bound) BuildOne(ctx context.Context, overrides ...Fields) (*Built, error) {
	return b.one(ctx, overrides, false)
}

// PersistOne resolves a single entity and saves it, along with every related
// entity created on the way, through the context's store.
func (b *Bound) PersistOne(ctx context.Context, overrides ...Fields) (*Built, error) {
	return b.one(ctx, overrides, true)
}

// Build resolves n independent entities without persisting them. The n
// pipelines run concurrently; sequence values drawn by the batch form a dense
// range but their assignment order across entities is unspecified.
func (b *Bound) Build(ctx context.Context, n int, overrides ...Fields) ([]any, error) {
	return b.many(ctx, n, overrides, false)
}

// Persist resolves and saves n independent entities concurrently. Entities
// saved before a failing pipeline are not rolled back; they remain in the
// creation log for Cleanup.
func (b *Bound) Persist(ctx context.Context, n int, overrides ...Fields) ([]any, error) {
	return b.many(ctx, n, overrides, true)
}

func (b *Bound) one(ctx context.Context, overrides []Fields, persist bool) (*Built, error) {
	ov := mergeOverrides(overrides)
	entity, err := resolve(ctx, b, ov, persist)
	if err != nil {
		return nil, err
	}
	return &Built{entity: entity, sctx: b.sctx}, nil
}

func (b *Bound) many(ctx context.Context, n int, overrides []Fields, persist bool) ([]any, error) {
	ov := mergeOverrides(overrides)
	results := make([]any, n)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			entity, err := resolve(ctx, b, ov, persist)
			if err != nil {
				return err
			}
			results[i] = entity
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// mergeOverrides flattens the optional variadic override mappings into one,
// later mappings winning key by key.
func mergeOverrides(overrides []Fields) Fields {
	switch len(overrides) {
	case 0:
		return nil
	case 1:
		return overrides[0]
	}
	merged := make(Fields)
	for _, ov := range overrides {
		for k, v := range ov {
			merged[k] = v
		}
	}
	return merged
}

// Built wraps a single resolved entity, carrying the context so the result
// can be labeled in a chain.
type Built struct {
	entity any
	sctx   *Context
}

// Entity returns the resolved entity as a pointer to its struct type.
func (r *Built) Entity() any { return r.entity }

// As registers the entity under the given label in the seeding context and
// returns the receiver for chaining. Labels are write-once.
func (r *Built) As(label string) (*Built, error) {
	if err := r.sctx.SetLabel(label, r.entity); err != nil {
		return nil, err
	}
	return r, nil
}

// One unwraps a single-entity result to a concrete pointer type:
//
//	user, err := seedkit.One[*User](users.PersistOne(ctx))
func One[T any](r *Built, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	v, ok := r.Entity().(T)
	if !ok {
		return zero, fmt.Errorf("seedkit: result is %T, not %T", r.Entity(), zero)
	}
	return v, nil
}

// Many unwraps a multi-entity result to a concrete pointer slice:
//
//	pets, err := seedkit.Many[*Pet](pets.Persist(ctx, 5))
func Many[T any](entities []any, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	out := make([]T, len(entities))
	for i, e := range entities {
		v, ok := e.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("seedkit: result %d is %T, not %T", i, e, zero)
		}
		out[i] = v
	}
	return out, nil
}
