package kb

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/arogya-labs/rxguard/internal/metrics"
	"github.com/arogya-labs/rxguard/internal/model"
)

// Cascade consults the curated local store first, then the lookup
// cache, then remote sources in order. A found record always wins,
// even after an earlier source error: a positive answer is actionable.
// A miss is definitive only when every source answered; if any source
// errored and none produced a record, the error propagates so the
// resolver marks the pair unknown. A failed lookup must never look
// like "confirmed safe".
type Cascade struct {
	local       Source
	remotes     []Source
	cache       Store
	cacheTTL    time.Duration
	negativeTTL time.Duration
}

// CascadeOption configures the Cascade.
type CascadeOption func(*Cascade)

// WithLookupCache enables write-through caching of remote answers,
// including definitive misses (cached with the negative TTL).
func WithLookupCache(store Store, ttl, negativeTTL time.Duration) CascadeOption {
	return func(c *Cascade) {
		c.cache = store
		c.cacheTTL = ttl
		c.negativeTTL = negativeTTL
	}
}

// NewCascade builds the source chain. local may be nil (remote-only),
// as may remotes (curated-only).
func NewCascade(local Source, remotes []Source, opts ...CascadeOption) *Cascade {
	c := &Cascade{local: local, remotes: remotes}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Name implements Source.
func (c *Cascade) Name() string { return "cascade" }

// Lookup implements Source.
func (c *Cascade) Lookup(ctx context.Context, pair model.Pair) (*model.InteractionRecord, error) {
	var lastErr error

	if c.local != nil {
		rec, err := c.local.Lookup(ctx, pair)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, err
			}
			metrics.KBLookupsTotal.WithLabelValues(c.local.Name(), "error").Inc()
			zap.L().Warn("kb: local lookup failed",
				zap.String("pair", pair.Key()),
				zap.Error(err),
			)
			lastErr = err
		case rec != nil:
			metrics.KBLookupsTotal.WithLabelValues(c.local.Name(), "hit").Inc()
			return rec, nil
		default:
			metrics.KBLookupsTotal.WithLabelValues(c.local.Name(), "miss").Inc()
		}
	}

	if c.cache != nil {
		cl, err := c.cache.GetCachedLookup(ctx, pair)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			zap.L().Warn("kb: lookup cache read failed",
				zap.String("pair", pair.Key()),
				zap.Error(err),
			)
		} else if cl != nil {
			outcome := "hit"
			if cl.Record == nil {
				outcome = "miss"
			}
			metrics.KBLookupsTotal.WithLabelValues("cache", outcome).Inc()
			return cl.Record, nil
		}
	}

	for _, src := range c.remotes {
		rec, err := src.Lookup(ctx, pair)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			metrics.KBLookupsTotal.WithLabelValues(src.Name(), "error").Inc()
			zap.L().Warn("kb: remote lookup failed",
				zap.String("source", src.Name()),
				zap.String("pair", pair.Key()),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		if rec != nil {
			metrics.KBLookupsTotal.WithLabelValues(src.Name(), "hit").Inc()
			c.writeCache(ctx, pair, rec, src.Name(), c.cacheTTL)
			return rec, nil
		}
		metrics.KBLookupsTotal.WithLabelValues(src.Name(), "miss").Inc()
	}

	if lastErr != nil {
		return nil, eris.Wrapf(lastErr, "kb: pair %s unresolved", pair.Key())
	}

	// Every source answered "none". Remember the negative so rechecks
	// of a safe list stay off the remote APIs.
	if len(c.remotes) > 0 {
		c.writeCache(ctx, pair, nil, "cascade", c.negativeTTL)
	}
	return nil, nil
}

func (c *Cascade) writeCache(ctx context.Context, pair model.Pair, rec *model.InteractionRecord, source string, ttl time.Duration) {
	if c.cache == nil || ttl <= 0 {
		return
	}
	if err := c.cache.SetCachedLookup(ctx, pair, rec, source, ttl); err != nil {
		zap.L().Warn("kb: lookup cache write failed",
			zap.String("pair", pair.Key()),
			zap.Error(err),
		)
	}
}
