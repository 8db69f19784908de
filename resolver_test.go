package seedkit_test

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/seedkit"
	"github.com/syssam/seedkit/gen"
	"github.com/syssam/seedkit/schema"
	"github.com/syssam/seedkit/storage/memstore"
)

// TestSequenceResolution tests that consecutive builds of one factory draw
// 1, 2, 3, ... from the per-type sequence counter.
func TestSequenceResolution(t *testing.T) {
	t.Parallel()

	sctx, _ := newTestContext(t)
	ctx := context.Background()
	users := sctx.MustGet(User{})

	for i := 1; i <= 3; i++ {
		u, err := seedkit.One[*User](users.BuildOne(ctx))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("user%d@test.com", i), u.Email)
	}
}

// TestSequencePerType tests that sequence counters are independent per
// factory type.
func TestSequencePerType(t *testing.T) {
	t.Parallel()

	emails := seedkit.Define(User{}, func(_ *gen.Generator) seedkit.Fields {
		return seedkit.Fields{
			"Email": seedkit.Sequence(func(n int) any { return fmt.Sprintf("u%d", n) }),
		}
	})
	bios := seedkit.Define(Profile{}, func(_ *gen.Generator) seedkit.Fields {
		return seedkit.Fields{
			"Bio": seedkit.Sequence(func(n int) any { return fmt.Sprintf("b%d", n) }),
		}
	})
	sctx := seedkit.NewContext(memstore.New(), seedkit.WithFactories(emails, bios))
	ctx := context.Background()

	u, err := seedkit.One[*User](sctx.MustGet(User{}).BuildOne(ctx))
	require.NoError(t, err)
	p, err := seedkit.One[*Profile](sctx.MustGet(Profile{}).BuildOne(ctx))
	require.NoError(t, err)

	assert.Equal(t, "u1", u.Email)
	assert.Equal(t, "b1", p.Bio)
}

// TestTempIDAssignment tests that build-without-persist assigns distinct,
// strictly decreasing negative primary keys starting at -1.
func TestTempIDAssignment(t *testing.T) {
	t.Parallel()

	sctx, store := newTestContext(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		u, err := seedkit.One[*User](sctx.MustGet(User{}).BuildOne(ctx))
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []int64{-1, -2, -3}, ids)
	assert.Zero(t, store.Len(User{}), "build must not persist")
}

// TestTempIDSharedAcrossTypes tests that the temporary-id allocator is one
// decreasing counter shared by all entity types.
func TestTempIDSharedAcrossTypes(t *testing.T) {
	t.Parallel()

	sctx, _ := newTestContext(t)
	ctx := context.Background()

	// The pet's owner resolves first, so it takes -1 and the pet takes -2.
	p, err := seedkit.One[*Pet](sctx.MustGet(Pet{}).BuildOne(ctx))
	require.NoError(t, err)
	require.NotNil(t, p.Owner)
	assert.Equal(t, int64(-1), p.Owner.ID)
	assert.Equal(t, int64(-2), p.ID)
	assert.Equal(t, p.Owner.ID, p.OwnerID, "foreign key wired from temporary id")
}

// TestBatchTempIDsDistinct tests that a concurrent Build(n) yields n distinct
// negative ids forming a dense range.
func TestBatchTempIDsDistinct(t *testing.T) {
	t.Parallel()

	sctx, _ := newTestContext(t)
	ctx := context.Background()

	built, err := seedkit.Many[*User](sctx.MustGet(User{}).Build(ctx, 5))
	require.NoError(t, err)

	ids := make([]int, 0, len(built))
	for _, u := range built {
		ids = append(ids, int(u.ID))
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))
	assert.Equal(t, []int{-1, -2, -3, -4, -5}, ids)
}

// TestPersistDistinctParents tests that persisting two pets creates two
// distinct owners, each pet's foreign key matching its own owner.
func TestPersistDistinctParents(t *testing.T) {
	t.Parallel()

	sctx, store := newTestContext(t)
	ctx := context.Background()

	pets, err := seedkit.Many[*Pet](sctx.MustGet(Pet{}).Persist(ctx, 2))
	require.NoError(t, err)
	require.Len(t, pets, 2)

	assert.Equal(t, 2, store.Len(User{}))
	assert.Equal(t, 2, store.Len(Pet{}))
	assert.NotEqual(t, pets[0].OwnerID, pets[1].OwnerID)
	for _, p := range pets {
		require.NotNil(t, p.Owner)
		assert.Equal(t, p.Owner.ID, p.OwnerID)
		assert.Positive(t, p.OwnerID)
	}
}

// TestHasManyVariant tests the has-many variant scenario: one persisted user
// with three pets, all referencing the single parent instance.
func TestHasManyVariant(t *testing.T) {
	t.Parallel()

	sctx, store := newTestContext(t)
	ctx := context.Background()

	u, err := seedkit.One[*User](sctx.MustGet(User{}).Variant("withPets").PersistOne(ctx))
	require.NoError(t, err)

	require.Len(t, u.Pets, 3)
	assert.Equal(t, 1, store.Len(User{}), "children must reference one parent, not re-create it")
	assert.Equal(t, 3, store.Len(Pet{}))
	for _, p := range u.Pets {
		assert.Same(t, u, p.Owner)
		assert.Equal(t, u.ID, p.OwnerID)
	}
}

// TestHasOneResolution tests has-one child creation with inverse injection.
func TestHasOneResolution(t *testing.T) {
	t.Parallel()

	withProfile := seedkit.Define(User{},
		func(g *gen.Generator) seedkit.Fields {
			return seedkit.Fields{
				"Name":    g.Name(),
				"Profile": seedkit.HasOne(Profile{}),
			}
		},
	)
	reg := testRegistry(t)
	store := memstore.New(memstore.WithSchema(reg))
	sctx := seedkit.NewContext(store,
		seedkit.WithSchema(reg),
		seedkit.WithFactories(withProfile, profileFactory()),
	)
	ctx := context.Background()

	u, err := seedkit.One[*User](sctx.MustGet(User{}).PersistOne(ctx))
	require.NoError(t, err)

	require.NotNil(t, u.Profile)
	assert.Same(t, u, u.Profile.User)
	assert.Equal(t, u.ID, u.Profile.UserID)
	assert.Equal(t, 1, store.Len(User{}))
	assert.Equal(t, 1, store.Len(Profile{}))
}

// TestOverrideReplacesDescriptor tests that a caller override fully replaces
// a relationship descriptor, creating no extra entities for that field.
func TestOverrideReplacesDescriptor(t *testing.T) {
	t.Parallel()

	sctx, store := newTestContext(t)
	ctx := context.Background()

	owner, err := seedkit.One[*User](sctx.MustGet(User{}).PersistOne(ctx))
	require.NoError(t, err)
	require.Equal(t, 1, store.Len(User{}))

	p, err := seedkit.One[*Pet](sctx.MustGet(Pet{}).PersistOne(ctx, seedkit.Fields{"Owner": owner}))
	require.NoError(t, err)

	assert.Equal(t, 1, store.Len(User{}), "no additional owner created")
	assert.Same(t, owner, p.Owner)
	assert.Equal(t, owner.ID, p.OwnerID)
}

// TestOverrideNilClearsField tests that an explicit nil override zeroes the
// field without resolving the replaced descriptor.
func TestOverrideNilClearsField(t *testing.T) {
	t.Parallel()

	sctx, store := newTestContext(t)
	ctx := context.Background()

	p, err := seedkit.One[*Pet](sctx.MustGet(Pet{}).BuildOne(ctx, seedkit.Fields{"Owner": nil}))
	require.NoError(t, err)

	assert.Nil(t, p.Owner)
	assert.Zero(t, p.OwnerID)
	assert.Zero(t, store.Len(User{}))
}

// TestBelongsToExistingEntity tests that a belongs-to argument with all
// primary keys set is used as-is, while one with unset keys becomes creation
// overrides.
func TestBelongsToExistingEntity(t *testing.T) {
	t.Parallel()

	t.Run("all_keys_set", func(t *testing.T) {
		t.Parallel()

		reg := testRegistry(t)
		store := memstore.New(memstore.WithSchema(reg))
		existing := &User{ID: 42, Name: "Existing"}
		pets := seedkit.Define(Pet{}, func(_ *gen.Generator) seedkit.Fields {
			return seedkit.Fields{
				"Name":  "rex",
				"Owner": seedkit.BelongsTo(User{}).With(existing),
			}
		})
		sctx := seedkit.NewContext(store,
			seedkit.WithSchema(reg),
			seedkit.WithFactories(pets, userFactory()),
		)

		p, err := seedkit.One[*Pet](sctx.MustGet(Pet{}).PersistOne(context.Background()))
		require.NoError(t, err)

		assert.Same(t, existing, p.Owner)
		assert.Equal(t, int64(42), p.OwnerID)
		assert.Zero(t, store.Len(User{}), "existing entity is not re-created")
	})

	t.Run("unset_keys_become_overrides", func(t *testing.T) {
		t.Parallel()

		reg := testRegistry(t)
		store := memstore.New(memstore.WithSchema(reg))
		pets := seedkit.Define(Pet{}, func(_ *gen.Generator) seedkit.Fields {
			return seedkit.Fields{
				"Name":  "rex",
				"Owner": seedkit.BelongsTo(User{}).With(User{Name: "Fresh"}),
			}
		})
		sctx := seedkit.NewContext(store,
			seedkit.WithSchema(reg),
			seedkit.WithFactories(pets, userFactory()),
		)

		p, err := seedkit.One[*Pet](sctx.MustGet(Pet{}).PersistOne(context.Background()))
		require.NoError(t, err)

		require.NotNil(t, p.Owner)
		assert.Equal(t, "Fresh", p.Owner.Name)
		assert.Equal(t, 1, store.Len(User{}))
	})
}

// TestBelongsToFieldsOverrides tests descriptor-attached creation overrides.
func TestBelongsToFieldsOverrides(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	store := memstore.New(memstore.WithSchema(reg))
	pets := seedkit.Define(Pet{}, func(_ *gen.Generator) seedkit.Fields {
		return seedkit.Fields{
			"Name":  "rex",
			"Owner": seedkit.BelongsTo(User{}).With(seedkit.Fields{"Name": "Named"}),
		}
	})
	sctx := seedkit.NewContext(store,
		seedkit.WithSchema(reg),
		seedkit.WithFactories(pets, userFactory()),
	)

	p, err := seedkit.One[*Pet](sctx.MustGet(Pet{}).PersistOne(context.Background()))
	require.NoError(t, err)
	require.NotNil(t, p.Owner)
	assert.Equal(t, "Named", p.Owner.Name)
}

// TestBelongsToVariant tests that descriptor variants apply to the related
// factory.
func TestBelongsToVariant(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	store := memstore.New(memstore.WithSchema(reg))
	pets := seedkit.Define(Pet{}, func(_ *gen.Generator) seedkit.Fields {
		return seedkit.Fields{
			"Name":  "rex",
			"Owner": seedkit.BelongsTo(User{}).Variant("admin"),
		}
	})
	sctx := seedkit.NewContext(store,
		seedkit.WithSchema(reg),
		seedkit.WithFactories(pets, userFactory()),
	)

	p, err := seedkit.One[*Pet](sctx.MustGet(Pet{}).PersistOne(context.Background()))
	require.NoError(t, err)
	require.NotNil(t, p.Owner)
	assert.Equal(t, "admin", p.Owner.Role)
}

// TestLabeledReference tests the label-then-reference scenario: an entity
// registered via As resolves to the identical instance through Ref.
func TestLabeledReference(t *testing.T) {
	t.Parallel()

	sctx, _ := newTestContext(t)
	ctx := context.Background()

	built, err := sctx.MustGet(User{}).Variant("admin").PersistOne(ctx)
	require.NoError(t, err)
	_, err = built.As("admin")
	require.NoError(t, err)
	admin := built.Entity().(*User)

	p, err := seedkit.One[*Pet](sctx.MustGet(Pet{}).PersistOne(ctx, seedkit.Fields{
		"Owner": seedkit.Ref("admin"),
	}))
	require.NoError(t, err)
	assert.Same(t, admin, p.Owner)
}

// TestMissingLabelFails tests that resolving an unregistered label aborts the
// pipeline with a MissingLabelError naming the label.
func TestMissingLabelFails(t *testing.T) {
	t.Parallel()

	sctx, store := newTestContext(t)
	ctx := context.Background()

	_, err := sctx.MustGet(Pet{}).PersistOne(ctx, seedkit.Fields{
		"Owner": seedkit.Ref("ghost"),
	})
	require.Error(t, err)
	assert.True(t, seedkit.IsMissingLabel(err))
	assert.Contains(t, err.Error(), "ghost")
	assert.Zero(t, store.Len(Pet{}))
}

// TestUnknownVariantFailsFast tests that an undeclared variant name fails
// before any entity is constructed or persisted.
func TestUnknownVariantFailsFast(t *testing.T) {
	t.Parallel()

	sctx, store := newTestContext(t)
	ctx := context.Background()

	_, err := sctx.MustGet(User{}).Variant("vip").PersistOne(ctx)
	require.Error(t, err)
	assert.True(t, seedkit.IsUnknownVariant(err))
	assert.Contains(t, err.Error(), `"vip"`)
	assert.Contains(t, err.Error(), "admin, withPets")
	assert.Zero(t, store.Len(User{}))
}

// TestUnknownVariantNoVariants tests the error message for a factory that
// defines no variants at all.
func TestUnknownVariantNoVariants(t *testing.T) {
	t.Parallel()

	sctx, _ := newTestContext(t)
	ctx := context.Background()

	_, err := sctx.MustGet(Pet{}).Variant("vip").BuildOne(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid: none")
}

// TestUnknownFieldFails tests that a mapping key naming no struct field is a
// configuration error identifying the factory and the key.
func TestUnknownFieldFails(t *testing.T) {
	t.Parallel()

	sctx, _ := newTestContext(t)
	ctx := context.Background()

	_, err := sctx.MustGet(User{}).BuildOne(ctx, seedkit.Fields{"Nickname": "x"})
	require.Error(t, err)
	assert.True(t, seedkit.IsUnknownField(err))
	assert.Contains(t, err.Error(), `"Nickname"`)
	assert.Contains(t, err.Error(), "User")
}

// TestMetadataSoftMiss tests that a context without schema metadata still
// resolves relationships, skipping foreign-key and inverse wiring.
func TestMetadataSoftMiss(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	sctx := seedkit.NewContext(store, seedkit.WithFactories(userFactory(), petFactory()))
	ctx := context.Background()

	p, err := seedkit.One[*Pet](sctx.MustGet(Pet{}).PersistOne(ctx))
	require.NoError(t, err)

	require.NotNil(t, p.Owner, "relation field still assigned")
	assert.Zero(t, p.OwnerID, "no metadata, no foreign-key inference")
}

// stubbingStore saves through the inner store, then replaces struct-pointer
// relation fields with nil, as the Store contract permits.
type stubbingStore struct {
	seedkit.Store
}

func (s *stubbingStore) Save(ctx context.Context, entity any) error {
	if err := s.Store.Save(ctx, entity); err != nil {
		return err
	}
	rv := reflect.ValueOf(entity).Elem()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if f.Kind() == reflect.Ptr && f.Type().Elem().Kind() == reflect.Struct {
			f.Set(reflect.Zero(f.Type()))
		}
	}
	return nil
}

// TestPersistRestoresStubbedRelations tests that relation references survive
// a store that stubs them out on Save: children created by inverse injection
// still point at the single parent instance afterwards.
func TestPersistRestoresStubbedRelations(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	store := &stubbingStore{Store: memstore.New(memstore.WithSchema(reg))}
	sctx := seedkit.NewContext(store,
		seedkit.WithSchema(reg),
		seedkit.WithFactories(userFactory(), petFactory()),
	)
	ctx := context.Background()

	u, err := seedkit.One[*User](sctx.MustGet(User{}).Variant("withPets").PersistOne(ctx))
	require.NoError(t, err)

	require.Len(t, u.Pets, 3)
	for _, p := range u.Pets {
		assert.Same(t, u, p.Owner, "stubbed relation restored after save")
		assert.Equal(t, u.ID, p.OwnerID)
	}
}

// Compound-key fixtures: a line identified by two columns, and an entity
// referencing it over both of them.
type (
	ShipmentLine struct {
		OrderID   int64
		ProductID int64
		Qty       int
	}

	Allocation struct {
		ID        int64
		OrderID   int64
		ProductID int64
		Line      *ShipmentLine
	}
)

func compoundRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry(
		schema.Describe(ShipmentLine{}).Keys("OrderID", "ProductID"),
		schema.Describe(Allocation{}).Relations(
			schema.BelongsTo("Line", ShipmentLine{}).Columns(
				schema.JoinColumn{Field: "OrderID", ReferencedField: "OrderID"},
				schema.JoinColumn{Field: "ProductID", ReferencedField: "ProductID"},
			),
		),
	)
	require.NoError(t, err)
	return reg
}

// TestTempIDCompoundKey tests that build-without-persist assigns one
// independent temporary id per primary-key column.
func TestTempIDCompoundKey(t *testing.T) {
	t.Parallel()

	reg := compoundRegistry(t)
	lines := seedkit.Define(ShipmentLine{}, func(_ *gen.Generator) seedkit.Fields {
		return seedkit.Fields{"Qty": 1}
	})
	sctx := seedkit.NewContext(memstore.New(memstore.WithSchema(reg)),
		seedkit.WithSchema(reg),
		seedkit.WithFactories(lines),
	)

	l, err := seedkit.One[*ShipmentLine](sctx.MustGet(ShipmentLine{}).BuildOne(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, int64(-1), l.OrderID)
	assert.Equal(t, int64(-2), l.ProductID)
}

// TestBelongsToCompoundForeignKey tests foreign-key inference over a relation
// with two join columns.
func TestBelongsToCompoundForeignKey(t *testing.T) {
	t.Parallel()

	reg := compoundRegistry(t)
	lines := seedkit.Define(ShipmentLine{}, func(_ *gen.Generator) seedkit.Fields {
		return seedkit.Fields{"Qty": 2}
	})
	allocs := seedkit.Define(Allocation{}, func(_ *gen.Generator) seedkit.Fields {
		return seedkit.Fields{"Line": seedkit.BelongsTo(ShipmentLine{})}
	})
	sctx := seedkit.NewContext(memstore.New(memstore.WithSchema(reg)),
		seedkit.WithSchema(reg),
		seedkit.WithFactories(lines, allocs),
	)

	a, err := seedkit.One[*Allocation](sctx.MustGet(Allocation{}).BuildOne(context.Background()))
	require.NoError(t, err)
	require.NotNil(t, a.Line)
	assert.Equal(t, a.Line.OrderID, a.OrderID)
	assert.Equal(t, a.Line.ProductID, a.ProductID)
	assert.NotEqual(t, a.OrderID, a.ProductID, "one id per key column")
}

// TestHasManyNegativeCount tests that a negative has-many count is a
// configuration error naming the factory and field.
func TestHasManyNegativeCount(t *testing.T) {
	t.Parallel()

	sctx, store := newTestContext(t)
	ctx := context.Background()

	_, err := sctx.MustGet(User{}).BuildOne(ctx, seedkit.Fields{
		"Pets": seedkit.HasMany(Pet{}, -1),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "User.Pets")
	assert.Contains(t, err.Error(), "-1")
	assert.Zero(t, store.Len(Pet{}))
}

// TestPersistLogsCreations tests that every persisted entity lands in the
// creation log in creation order, parents before their children.
func TestPersistLogsCreations(t *testing.T) {
	t.Parallel()

	sctx, _ := newTestContext(t)
	ctx := context.Background()

	u, err := seedkit.One[*User](sctx.MustGet(User{}).Variant("withPets").PersistOne(ctx))
	require.NoError(t, err)

	created := sctx.Created()
	require.Len(t, created, 4)
	assert.Same(t, u, created[0])
	for _, e := range created[1:] {
		_, ok := e.(*Pet)
		assert.True(t, ok)
	}
}
