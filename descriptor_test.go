package seedkit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/seedkit"
)

// TestIsDescriptor tests that the predicate recognizes constructed
// descriptors and rejects plain values, including objects that structurally
// resemble one.
func TestIsDescriptor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{
			name:  "sequence",
			value: seedkit.Sequence(func(n int) any { return n }),
			want:  true,
		},
		{
			name:  "ref",
			value: seedkit.Ref("admin"),
			want:  true,
		},
		{
			name:  "belongs_to",
			value: seedkit.BelongsTo(User{}),
			want:  true,
		},
		{
			name:  "has_many",
			value: seedkit.HasMany(Pet{}, 3),
			want:  true,
		},
		{
			name:  "has_one",
			value: seedkit.HasOne(Profile{}),
			want:  true,
		},
		{
			name:  "chained_options_stay_descriptors",
			value: seedkit.BelongsTo(User{}).With(seedkit.Fields{"Role": "admin"}).Variant("admin"),
			want:  true,
		},
		{
			name:  "nil",
			value: nil,
			want:  false,
		},
		{
			name:  "plain_string",
			value: "label",
			want:  false,
		},
		{
			name:  "plain_struct",
			value: User{Name: "not a descriptor"},
			want:  false,
		},
		{
			name:  "shape_alike_map",
			value: map[string]any{"kind": "belongs-to", "label": "admin"},
			want:  false,
		},
		{
			name:  "zero_descriptor_value",
			value: &seedkit.Descriptor{},
			want:  false,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, seedkit.IsDescriptor(tt.value))
		})
	}
}

// TestDescriptorChaining tests that With and Variant return the same
// descriptor for fluent construction.
func TestDescriptorChaining(t *testing.T) {
	t.Parallel()

	d := seedkit.BelongsTo(User{})
	assert.Same(t, d, d.With(seedkit.Fields{"Role": "admin"}))
	assert.Same(t, d, d.Variant("admin"))
}
