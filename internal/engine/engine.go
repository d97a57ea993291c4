package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/arogya-labs/rxguard/internal/kb"
	"github.com/arogya-labs/rxguard/internal/metrics"
	"github.com/arogya-labs/rxguard/internal/model"
)

// Engine ties resolution, aggregation, provenance annotation, and
// schedule merging behind the two operations the surfaces call.
type Engine struct {
	resolver *Resolver
}

// New creates an Engine over the given knowledge source.
func New(source kb.Source, opts ...ResolverOption) *Engine {
	return &Engine{resolver: NewResolver(source, opts...)}
}

// CheckInteractions resolves a flat drug list and aggregates the
// findings. Drug names are free-form patient input; duplicates and
// case or whitespace variants collapse to one drug.
func (e *Engine) CheckInteractions(ctx context.Context, names []string) (*model.AggregateResult, error) {
	res, err := e.resolver.Resolve(ctx, names)
	if err != nil {
		return nil, eris.Wrap(err, "engine: check interactions")
	}
	agg := Aggregate(res)
	e.observe("single", agg)
	return agg, nil
}

// CheckMultiPrescription checks the union of all medications across
// prescriptions, annotates every finding with its prescription
// provenance, and merges the prescriptions into one daily schedule
// with conflicting entries flagged.
func (e *Engine) CheckMultiPrescription(ctx context.Context, prescriptions []model.Prescription) (*model.MultiResult, error) {
	var names []string
	for _, p := range prescriptions {
		for _, med := range p.Medications {
			names = append(names, med.Name)
		}
	}

	res, err := e.resolver.Resolve(ctx, names)
	if err != nil {
		return nil, eris.Wrap(err, "engine: check multi prescription")
	}

	// Annotate before aggregation so the sorted copy carries the
	// cross-source flags.
	Annotate(res.Findings, model.BuildProvenance(prescriptions))
	agg := Aggregate(res)
	e.observe("multi", agg)

	return &model.MultiResult{
		Aggregate: *agg,
		Schedule:  MergeSchedules(prescriptions, res.Findings),
	}, nil
}

func (e *Engine) observe(mode string, agg *model.AggregateResult) {
	metrics.ChecksTotal.WithLabelValues(mode).Inc()
	if agg.Safe != nil && !*agg.Safe {
		metrics.UnsafeResultsTotal.Inc()
	}
	zap.L().Info("engine: check complete",
		zap.String("mode", mode),
		zap.Int("drugs", len(agg.Drugs)),
		zap.Int("pairs", agg.PairsChecked),
		zap.Int("critical", agg.Counts.Critical),
		zap.Int("unknown", agg.Counts.Unknown),
	)
}
