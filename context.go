package seedkit

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/syssam/seedkit/gen"
	"github.com/syssam/seedkit/schema"
)

// Store is the persistence collaborator the seeding context saves and deletes
// entities through. Implementations are expected to assign database-generated
// primary keys on Save by mutating the entity in place, and may replace
// related-object references with stubs; the resolution engine restores those
// references after Save.
//
// A Store value represents one persistence handle. Transaction scoping is the
// caller's responsibility: obtain a transaction-bound Store and derive a child
// context with Context.WithStore.
type Store interface {
	Save(ctx context.Context, entity any) error
	Remove(ctx context.Context, entity any) error
}

// sharedState is the context state a transaction-scoped child shares with its
// parent by reference. One mutex guards all of it; resolution pipelines may
// run on multiple goroutines.
type sharedState struct {
	mu        sync.Mutex
	factories map[reflect.Type]*Factory
	sequences map[reflect.Type]int
	tempID    int // next temporary id, starts at -1 and decreases
	labels    map[string]any
	log       []logEntry
	users     map[string]any
	meta      schema.Provider
	gen       *gen.Generator
}

// logEntry records one persisted entity for reverse-order cleanup.
type logEntry struct {
	typ    reflect.Type
	entity any
}

// Context is the session-scoped state container for seeding: registered
// factories, per-type sequence counters, the temporary-id allocator, the
// labeled-reference store, the creation log, a caller-defined value store,
// and the bound persistence handle.
//
// WithStore derives a transaction-scoped child sharing everything but the
// handle, so entities resolved through the child save into the transaction
// while sequences, labels and the creation log stay visible to the parent.
type Context struct {
	shared *sharedState
	store  Store
}

// ContextOption configures a Context at construction time.
type ContextOption func(*Context)

// WithSchema supplies the metadata provider used for foreign-key and
// inverse-relation discovery. Without it every metadata lookup is a soft miss
// and relationship wiring degrades to field assignment only.
func WithSchema(p schema.Provider) ContextOption {
	return func(c *Context) {
		c.shared.meta = p
	}
}

// WithGenerator replaces the default value generator passed to definitions.
func WithGenerator(g *gen.Generator) ContextOption {
	return func(c *Context) {
		c.shared.gen = g
	}
}

// WithFactories registers factories at construction time.
func WithFactories(factories ...*Factory) ContextOption {
	return func(c *Context) {
		for _, f := range factories {
			c.shared.factories[f.typ] = f
		}
	}
}

// NewContext returns a seeding context bound to the given store.
func NewContext(store Store, opts ...ContextOption) *Context {
	c := &Context{
		shared: &sharedState{
			factories: make(map[reflect.Type]*Factory),
			sequences: make(map[reflect.Type]int),
			tempID:    -1,
			labels:    make(map[string]any),
			users:     make(map[string]any),
		},
		store: store,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.shared.gen == nil {
		c.shared.gen = gen.New()
	}
	return c
}

// Register adds factories to the context's registry. Registering a second
// factory for the same entity type replaces the first.
func (c *Context) Register(factories ...*Factory) {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	for _, f := range factories {
		c.shared.factories[f.typ] = f
	}
}

// Get returns a context-bound handle for the prototype's factory. The handle
// is always bound to this context, so a shared factory used through a
// transaction-scoped child routes persistence through the child's store.
func (c *Context) Get(prototype any) (*Bound, error) {
	t := schema.TypeOf(prototype)
	c.shared.mu.Lock()
	f, ok := c.shared.factories[t]
	c.shared.mu.Unlock()
	if !ok {
		name := "<nil>"
		if t != nil {
			name = t.Name()
		}
		return nil, &UnregisteredFactoryError{Type: name}
	}
	return &Bound{factory: f, sctx: c}, nil
}

// MustGet is like Get but panics on an unregistered type. It keeps seeder
// bodies flat when registration is static.
func (c *Context) MustGet(prototype any) *Bound {
	b, err := c.Get(prototype)
	if err != nil {
		panic(err)
	}
	return b
}

// WithStore derives a transaction-scoped child context bound to the given
// store. The child shares the factory registry, sequence counters, label
// store, creation log and user store with its parent by reference; a write
// through either is immediately visible to both.
func (c *Context) WithStore(store Store) *Context {
	return &Context{shared: c.shared, store: store}
}

// Store returns the persistence handle the context is bound to.
func (c *Context) Store() Store { return c.store }

// nextSequence returns the next per-type sequence value, starting at 1.
func (c *Context) nextSequence(t reflect.Type) int {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	c.shared.sequences[t]++
	return c.shared.sequences[t]
}

// nextTempID returns the next temporary id, starting at -1 and strictly
// decreasing across all entity types.
func (c *Context) nextTempID() int {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	id := c.shared.tempID
	c.shared.tempID--
	return id
}

// SetLabel registers an entity under a write-once label.
func (c *Context) SetLabel(label string, entity any) error {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	if _, ok := c.shared.labels[label]; ok {
		return &DuplicateLabelError{Label: label}
	}
	c.shared.labels[label] = entity
	return nil
}

// Label returns the entity registered under the label.
func (c *Context) Label(label string) (any, error) {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	entity, ok := c.shared.labels[label]
	if !ok {
		return nil, &MissingLabelError{Label: label}
	}
	return entity, nil
}

// SetValue stores a caller-defined value in the context's user store. The
// store is opaque to the engine and shared with derived child contexts.
func (c *Context) SetValue(key string, value any) {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	c.shared.users[key] = value
}

// Value returns a caller-defined value from the user store.
func (c *Context) Value(key string) (any, bool) {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	v, ok := c.shared.users[key]
	return v, ok
}

// logCreation appends one persisted entity to the creation log.
func (c *Context) logCreation(t reflect.Type, entity any) {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	c.shared.log = append(c.shared.log, logEntry{typ: t, entity: entity})
}

// Created returns a snapshot of the creation log in creation order.
func (c *Context) Created() []any {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	entities := make([]any, len(c.shared.log))
	for i, e := range c.shared.log {
		entities[i] = e.entity
	}
	return entities
}

// Cleanup deletes every logged entity in reverse creation order, so children
// go before their parents and referential-integrity constraints hold. Each
// entry is popped from the live log as its delete succeeds, so entities
// logged while Cleanup runs are deleted too rather than dropped; on a delete
// failure the failing and older entries stay logged and the error is
// returned.
func (c *Context) Cleanup(ctx context.Context) error {
	for {
		c.shared.mu.Lock()
		n := len(c.shared.log)
		if n == 0 {
			c.shared.mu.Unlock()
			return nil
		}
		last := c.shared.log[n-1]
		c.shared.mu.Unlock()

		if err := c.store.Remove(ctx, last.entity); err != nil {
			return fmt.Errorf("seedkit: cleanup %s: %w", last.typ.Name(), err)
		}

		c.shared.mu.Lock()
		for i := len(c.shared.log) - 1; i >= 0; i-- {
			if c.shared.log[i].entity == last.entity {
				c.shared.log = append(c.shared.log[:i], c.shared.log[i+1:]...)
				break
			}
		}
		c.shared.mu.Unlock()
	}
}

// ResetSequences clears all per-type sequence counters.
func (c *Context) ResetSequences() {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	c.shared.sequences = make(map[reflect.Type]int)
}

// ClearLabels clears the labeled-reference store.
func (c *Context) ClearLabels() {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	c.shared.labels = make(map[string]any)
}

// Reset clears sequence counters, labels and the creation log, and resets the
// temporary-id allocator to -1. Persisted data is untouched.
func (c *Context) Reset() {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	c.shared.sequences = make(map[reflect.Type]int)
	c.shared.labels = make(map[string]any)
	c.shared.log = c.shared.log[:0]
	c.shared.tempID = -1
}

func (c *Context) metadata(t reflect.Type) (*schema.Entity, bool) {
	c.shared.mu.Lock()
	meta := c.shared.meta
	c.shared.mu.Unlock()
	if meta == nil {
		return nil, false
	}
	return meta.Lookup(t)
}

func (c *Context) generator() *gen.Generator {
	return c.shared.gen
}
