package seedkit_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/seedkit"
	"github.com/syssam/seedkit/gen"
	"github.com/syssam/seedkit/schema"
	"github.com/syssam/seedkit/storage/memstore"
)

// Test entity types. Zero-argument construction, all fields assigned after.
type (
	User struct {
		ID      int64
		Name    string
		Email   string
		Role    string
		Pets    []*Pet
		Profile *Profile
	}

	Pet struct {
		ID      int64
		Name    string
		OwnerID int64
		Owner   *User
	}

	Profile struct {
		ID     int64
		Bio    string
		UserID int64
		User   *User
	}
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry(
		schema.Describe(User{}).
			Keys("ID").
			Relations(
				schema.HasMany("Pets", Pet{}).Inverse("Owner"),
				schema.HasOne("Profile", Profile{}).Inverse("User"),
			),
		schema.Describe(Pet{}).
			Relations(
				schema.BelongsTo("Owner", User{}).Inverse("Pets"),
			),
		schema.Describe(Profile{}).
			Relations(
				schema.BelongsTo("User", User{}).Inverse("Profile"),
			),
	)
	require.NoError(t, err)
	return reg
}

func userFactory() *seedkit.Factory {
	return seedkit.Define(User{},
		func(g *gen.Generator) seedkit.Fields {
			return seedkit.Fields{
				"Name": g.Name(),
				"Email": seedkit.Sequence(func(n int) any {
					return fmt.Sprintf("user%d@test.com", n)
				}),
				"Role": "user",
			}
		},
		seedkit.WithVariant("admin", func(_ *gen.Generator) seedkit.Fields {
			return seedkit.Fields{"Role": "admin"}
		}),
		seedkit.WithVariant("withPets", func(_ *gen.Generator) seedkit.Fields {
			return seedkit.Fields{"Pets": seedkit.HasMany(Pet{}, 3)}
		}),
	)
}

func petFactory() *seedkit.Factory {
	return seedkit.Define(Pet{}, func(g *gen.Generator) seedkit.Fields {
		return seedkit.Fields{
			"Name":  g.Word(),
			"Owner": seedkit.BelongsTo(User{}),
		}
	})
}

func profileFactory() *seedkit.Factory {
	return seedkit.Define(Profile{}, func(g *gen.Generator) seedkit.Fields {
		return seedkit.Fields{
			"Bio":  g.Sentence(3),
			"User": seedkit.BelongsTo(User{}),
		}
	})
}

// newTestContext returns a context over a fresh in-memory store with the
// standard test factories registered.
func newTestContext(t *testing.T) (*seedkit.Context, *memstore.Store) {
	t.Helper()
	reg := testRegistry(t)
	store := memstore.New(memstore.WithSchema(reg))
	sctx := seedkit.NewContext(store,
		seedkit.WithSchema(reg),
		seedkit.WithFactories(userFactory(), petFactory(), profileFactory()),
	)
	return sctx, store
}
