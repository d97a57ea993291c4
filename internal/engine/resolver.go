// Package engine implements the pairwise drug-interaction resolution
// and aggregation engine: pair enumeration against a knowledge source,
// severity aggregation, cross-prescription provenance annotation, and
// schedule merging.
package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arogya-labs/rxguard/internal/kb"
	"github.com/arogya-labs/rxguard/internal/model"
)

const defaultConcurrency = 8

// Resolution is the raw outcome of enumerating one drug set: the
// distinct drugs, the pairs checked, and the findings (found records
// and unknown-status pairs) in enumeration order.
type Resolution struct {
	Drugs        []model.Drug
	Pairs        []model.Pair
	PairsChecked int
	Findings     []model.Finding
}

// Resolver enumerates all unordered pairs of a drug set and queries
// the knowledge source once per pair.
type Resolver struct {
	source      kb.Source
	concurrency int
}

// ResolverOption configures the Resolver.
type ResolverOption func(*Resolver)

// WithConcurrency bounds the number of in-flight knowledge source
// lookups per Resolve call.
func WithConcurrency(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewResolver creates a Resolver over the given knowledge source.
func NewResolver(source kb.Source, opts ...ResolverOption) *Resolver {
	r := &Resolver{source: source, concurrency: defaultConcurrency}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve deduplicates the input by normalized identifier, enumerates
// all C(n,2) unordered pairs in a stable order (identifiers sorted,
// then i<j traversal), and queries the knowledge source exactly once
// per pair. Lookups run concurrently but results are reassembled into
// enumeration order, so repeated calls with the same set and an
// unchanged source produce identical output.
//
// Fewer than two distinct drugs is a valid, trivially safe input:
// Resolve returns an empty resolution without querying. A failed
// lookup becomes an unknown-status finding, never a dropped pair.
// Only context cancellation aborts the call.
func (r *Resolver) Resolve(ctx context.Context, names []string) (*Resolution, error) {
	drugs := model.DedupeDrugs(names)
	res := &Resolution{Drugs: drugs}
	if len(drugs) < 2 {
		return res, nil
	}

	type pairJob struct {
		pair model.Pair
		a, b model.Drug
	}
	jobs := make([]pairJob, 0, len(drugs)*(len(drugs)-1)/2)
	for i := 0; i < len(drugs); i++ {
		for j := i + 1; j < len(drugs); j++ {
			// Drugs are sorted by identifier, so the pair is already canonical.
			pair, ok := model.NewPair(drugs[i].ID, drugs[j].ID)
			if !ok {
				continue
			}
			jobs = append(jobs, pairJob{pair: pair, a: drugs[i], b: drugs[j]})
			res.Pairs = append(res.Pairs, pair)
		}
	}
	res.PairsChecked = len(jobs)

	// Indexed slots keep the output deterministic regardless of
	// completion order.
	outcomes := make([]*model.Finding, len(jobs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			rec, err := r.source.Lookup(gCtx, job.pair)
			switch {
			case err != nil && gCtx.Err() != nil:
				// Superseded request: abandon, discard.
				return gCtx.Err()
			case err != nil:
				zap.L().Warn("engine: pair lookup degraded",
					zap.String("pair", job.pair.Key()),
					zap.Error(err),
				)
				outcomes[i] = &model.Finding{
					Pair:        job.pair,
					DrugA:       job.a.Name,
					DrugB:       job.b.Name,
					Severity:    model.SeverityUnknown,
					LookupError: err.Error(),
				}
			case rec != nil:
				outcomes[i] = &model.Finding{
					Pair:     job.pair,
					DrugA:    job.a.Name,
					DrugB:    job.b.Name,
					Severity: rec.Severity,
					Record:   rec,
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "engine: resolve")
	}

	for _, f := range outcomes {
		if f != nil {
			res.Findings = append(res.Findings, *f)
		}
	}
	return res, nil
}
