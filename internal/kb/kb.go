// Package kb provides the interaction knowledge sources: the curated
// local store, remote lookups (OpenFDA, Claude), and the cascade that
// chains them with a TTL'd lookup cache.
package kb

import (
	"context"

	"github.com/arogya-labs/rxguard/internal/model"
)

// Source is a knowledge backend consulted for one unordered pair.
// A (nil, nil) return means the source knows of no interaction for the
// pair; a non-nil error means the source could not answer, which is a
// different thing and must stay distinguishable.
type Source interface {
	Name() string
	Lookup(ctx context.Context, pair model.Pair) (*model.InteractionRecord, error)
}

// StoreSource adapts the curated store to the Source interface.
type StoreSource struct {
	store Store
}

// NewStoreSource wraps a Store as a lookup Source.
func NewStoreSource(store Store) *StoreSource {
	return &StoreSource{store: store}
}

// Name implements Source.
func (s *StoreSource) Name() string { return "local" }

// Lookup implements Source.
func (s *StoreSource) Lookup(ctx context.Context, pair model.Pair) (*model.InteractionRecord, error) {
	return s.store.GetInteraction(ctx, pair)
}
