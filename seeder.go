package seedkit

import "context"

// Seeder is one orchestration unit: a thin caller sequencing factory
// invocations against a shared seeding context.
type Seeder interface {
	Seed(ctx context.Context, sctx *Context) error
}

// SeedFunc adapts a function to the Seeder interface.
type SeedFunc func(ctx context.Context, sctx *Context) error

// Seed calls f.
func (f SeedFunc) Seed(ctx context.Context, sctx *Context) error {
	return f(ctx, sctx)
}

// Run executes the seeders in order, all sharing this context. The first
// error aborts the run; entities persisted by earlier seeders stay in the
// creation log.
func (c *Context) Run(ctx context.Context, seeders ...Seeder) error {
	for _, s := range seeders {
		if err := s.Seed(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
