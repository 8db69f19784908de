// Package gen provides the value generator handed to factory definitions.
//
// The seeding engine treats the generator as an opaque collaborator: it is
// passed into definition and variant functions and never inspected. The
// default generator draws from built-in word pools; callers can add their own
// pools programmatically or load them from YAML.
package gen

import (
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Built-in pools, available without any configuration.
var defaultPools = map[string][]string{
	"names": {
		"Alice", "Bob", "Carol", "Dave", "Erin", "Frank", "Grace", "Heidi",
		"Ivan", "Judy", "Mallory", "Niaj", "Olivia", "Peggy", "Rupert",
		"Sybil", "Trent", "Victor", "Wendy",
	},
	"words": {
		"amber", "basalt", "cedar", "delta", "ember", "fjord", "garnet",
		"harbor", "indigo", "juniper", "krill", "lumen", "meadow", "nimbus",
		"onyx", "prairie", "quartz", "reef", "sierra", "tundra",
	},
	"domains": {
		"example.com", "example.org", "example.net", "test.local",
	},
}

// Generator produces fake values for factory definitions.
// All methods are safe for concurrent use.
type Generator struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	pools map[string][]string
	n     int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed fixes the random source for reproducible runs.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.rnd = rand.New(rand.NewSource(seed))
	}
}

// WithPool registers or replaces a named value pool.
func WithPool(name string, values []string) Option {
	return func(g *Generator) {
		g.pools[name] = values
	}
}

// New returns a Generator with the built-in pools.
func New(opts ...Option) *Generator {
	g := &Generator{
		rnd:   rand.New(rand.NewSource(rand.Int63())),
		pools: make(map[string][]string, len(defaultPools)),
	}
	for name, values := range defaultPools {
		g.pools[name] = values
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LoadPools merges YAML-declared pools into the generator. The document is a
// mapping from pool name to a sequence of strings; existing pools with the
// same name are replaced.
func (g *Generator) LoadPools(r io.Reader) error {
	var pools map[string][]string
	if err := yaml.NewDecoder(r).Decode(&pools); err != nil {
		return fmt.Errorf("gen: loading pools: %w", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for name, values := range pools {
		g.pools[name] = values
	}
	return nil
}

// UUID returns a random UUID string.
func (g *Generator) UUID() string {
	return uuid.NewString()
}

// Int returns a random integer in [min, max].
func (g *Generator) Int(min, max int) int {
	if max < min {
		min, max = max, min
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return min + g.rnd.Intn(max-min+1)
}

// Bool returns a random boolean.
func (g *Generator) Bool() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Intn(2) == 0
}

// Pick returns a random value from the named pool, or the empty string when
// the pool is unknown or empty.
func (g *Generator) Pick(pool string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	values := g.pools[pool]
	if len(values) == 0 {
		return ""
	}
	return values[g.rnd.Intn(len(values))]
}

// Name returns a random person name.
func (g *Generator) Name() string {
	return g.Pick("names")
}

// Word returns a random word.
func (g *Generator) Word() string {
	return g.Pick("words")
}

// Email returns a unique email address. Uniqueness comes from an internal
// counter, so two calls never collide even with a fixed seed.
func (g *Generator) Email() string {
	g.mu.Lock()
	g.n++
	n := g.n
	var domain string
	if values := g.pools["domains"]; len(values) > 0 {
		domain = values[g.rnd.Intn(len(values))]
	} else {
		domain = "example.com"
	}
	var name string
	if values := g.pools["names"]; len(values) > 0 {
		name = strings.ToLower(values[g.rnd.Intn(len(values))])
	} else {
		name = "user"
	}
	g.mu.Unlock()
	return fmt.Sprintf("%s%d@%s", name, n, domain)
}

// Sentence returns n random words joined by spaces.
func (g *Generator) Sentence(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = g.Word()
	}
	return strings.Join(words, " ")
}
