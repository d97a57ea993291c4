package kb

import (
	"context"
	"time"

	"github.com/arogya-labs/rxguard/internal/model"
)

// CachedLookup is a remembered remote answer for a pair. A nil Record
// is a definitive miss: every configured source answered "none" when
// the cache entry was written.
type CachedLookup struct {
	Pair      model.Pair               `json:"pair"`
	Record    *model.InteractionRecord `json:"record,omitempty"`
	Source    string                   `json:"source"`
	CachedAt  time.Time                `json:"cached_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// Stats summarizes the knowledge base contents.
type Stats struct {
	Pairs         int                  `json:"pairs"`
	Drugs         int                  `json:"drugs"`
	BySeverity    model.SeverityCounts `json:"by_severity"`
	CachedLookups int                  `json:"cached_lookups"`
}

// Store is the persistence interface for the curated interaction
// knowledge base and the remote lookup cache. At most one curated
// record exists per canonical pair.
type Store interface {
	GetInteraction(ctx context.Context, pair model.Pair) (*model.InteractionRecord, error)
	UpsertInteraction(ctx context.Context, rec model.InteractionRecord) error

	GetCachedLookup(ctx context.Context, pair model.Pair) (*CachedLookup, error)
	SetCachedLookup(ctx context.Context, pair model.Pair, rec *model.InteractionRecord, source string, ttl time.Duration) error
	DeleteExpiredLookups(ctx context.Context) (int, error)

	Stats(ctx context.Context) (*Stats, error)

	Migrate(ctx context.Context) error
	Close() error
}
