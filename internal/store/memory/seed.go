package memory

import (
	"context"

	"github.com/noah-isme/grocery-pos/internal/store"
)

// Seed loads the demo data set.
func (s *Store) Seed(ctx context.Context) error {
	return store.Seed(ctx, s)
}
