package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/tabletop/core/logger"
)

// Seeder loads reference data into storage.
type Seeder interface {
	Seed(ctx context.Context) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc func(ctx context.Context) error

// Seed executes the underlying function.
func (f SeederFunc) Seed(ctx context.Context) error {
	return f(ctx)
}

// Named labels a seeder in logs.
func Named(name string, s Seeder) Seeder {
	return namedSeeder{name: name, Seeder: s}
}

type namedSeeder struct {
	name string
	Seeder
}

// Modules groups optional bootstrapping hooks.
type Modules struct {
	Seeders []Seeder
}

// Seed runs every seeder in order and stops at the first failure.
func (m Modules) Seed(ctx context.Context) error {
	for i, s := range m.Seeders {
		name := fmt.Sprintf("seeder_%d", i)
		if n, ok := s.(namedSeeder); ok {
			name = n.name
		}
		start := time.Now()
		if err := s.Seed(ctx); err != nil {
			logger.SEED.LogAttrs(ctx, slog.LevelError, "seed",
				slog.String("status", "fail"),
				slog.String("seeder", name),
				slog.String("err", err.Error()),
			)
			return fmt.Errorf("bootstrap: seeder %s: %w", name, err)
		}
		logger.SEED.LogAttrs(ctx, slog.LevelInfo, "seed",
			slog.String("status", "ok"),
			slog.String("seeder", name),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	}
	return nil
}
