// Package seedkit generates graphs of related test entities on demand.
//
// Callers declare, per entity type, a factory: a base field mapping of plain
// values and descriptors, plus optional named variants. Building or
// persisting through a factory runs a phase-ordered resolution pipeline that
// merges variants and overrides, resolves sequences and labeled references,
// recursively creates related entities, and wires foreign keys from schema
// metadata.
//
// # Factories and descriptors
//
//	users := seedkit.Define(User{}, func(g *gen.Generator) seedkit.Fields {
//	    return seedkit.Fields{
//	        "Name":  g.Name(),
//	        "Email": seedkit.Sequence(func(n int) any {
//	            return fmt.Sprintf("user%d@test.com", n)
//	        }),
//	    }
//	}, seedkit.WithVariant("withPets", func(g *gen.Generator) seedkit.Fields {
//	    return seedkit.Fields{"Pets": seedkit.HasMany(Pet{}, 3)}
//	}))
//
//	pets := seedkit.Define(Pet{}, func(g *gen.Generator) seedkit.Fields {
//	    return seedkit.Fields{
//	        "Name":  g.Word(),
//	        "Owner": seedkit.BelongsTo(User{}),
//	    }
//	})
//
// # Seeding context
//
// A Context holds the session state: the factory registry, per-type sequence
// counters, the temporary-id allocator for unpersisted entities, the
// write-once label store, the creation log used for reverse-order cleanup,
// and the bound persistence Store.
//
//	sctx := seedkit.NewContext(store,
//	    seedkit.WithSchema(reg),
//	    seedkit.WithFactories(users, pets),
//	)
//	user, err := seedkit.One[*User](sctx.MustGet(User{}).Variant("withPets").PersistOne(ctx))
//	...
//	defer sctx.Cleanup(ctx)
//
// Mutual relationships terminate: when a has-many or has-one field creates
// children, the already-resolved parent is injected as the child's inverse
// relation override, replacing the child's own belongs-to descriptor before
// it can recurse.
//
// Transaction scoping derives a child context bound to another Store while
// sharing counters, labels and the creation log:
//
//	txCtx := sctx.WithStore(txStore)
//
// Persistence and metadata are external collaborators: any Store
// implementation can back a context (see storage/memstore and
// storage/sqlstore), and relationship wiring consults a schema.Provider
// registered up front.
package seedkit
