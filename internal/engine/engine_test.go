package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arogya-labs/rxguard/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// stubSource returns canned records keyed by pair and counts lookups.
type stubSource struct {
	mu      sync.Mutex
	records map[string]*model.InteractionRecord
	errs    map[string]error
	calls   map[string]int
}

func newStubSource() *stubSource {
	return &stubSource{
		records: make(map[string]*model.InteractionRecord),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Lookup(_ context.Context, pair model.Pair) (*model.InteractionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[pair.Key()]++
	if err, ok := s.errs[pair.Key()]; ok {
		return nil, err
	}
	return s.records[pair.Key()], nil
}

func (s *stubSource) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *stubSource) add(a, b string, sev model.Severity) {
	pair, _ := model.NewPair(model.NormalizeName(a), model.NormalizeName(b))
	s.records[pair.Key()] = &model.InteractionRecord{
		Pair:     pair,
		Severity: sev,
		Title:    fmt.Sprintf("%s and %s", a, b),
		Source:   "stub",
	}
}

func (s *stubSource) fail(a, b string, err error) {
	pair, _ := model.NewPair(model.NormalizeName(a), model.NormalizeName(b))
	s.errs[pair.Key()] = err
}

func TestCheckInteractionsEmptyInput(t *testing.T) {
	eng := New(newStubSource())

	agg, err := eng.CheckInteractions(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, agg.Findings)
	assert.Zero(t, agg.PairsChecked)
	assert.Equal(t, model.SeverityCounts{}, agg.Counts)
	assert.Nil(t, agg.Safe, "safe stays unset below two drugs")
}

func TestCheckInteractionsSingleDrug(t *testing.T) {
	src := newStubSource()
	eng := New(src)

	agg, err := eng.CheckInteractions(context.Background(), []string{"Warfarin"})
	require.NoError(t, err)

	assert.Zero(t, agg.PairsChecked)
	assert.Nil(t, agg.Safe)
	assert.Zero(t, src.totalCalls(), "no pairs means no lookups")
}

func TestCheckInteractionsDuplicatesCollapse(t *testing.T) {
	src := newStubSource()
	eng := New(src)

	agg, err := eng.CheckInteractions(context.Background(),
		[]string{"Warfarin", "warfarin", "  WARFARIN  ", "Aspirin"})
	require.NoError(t, err)

	require.Len(t, agg.Drugs, 2)
	assert.Equal(t, 1, agg.PairsChecked)
	assert.Equal(t, 1, src.totalCalls(), "one lookup per unordered pair")
}

func TestCheckInteractionsPairCount(t *testing.T) {
	src := newStubSource()
	eng := New(src)

	names := []string{"a", "b", "c", "d", "e"}
	agg, err := eng.CheckInteractions(context.Background(), names)
	require.NoError(t, err)

	assert.Equal(t, 10, agg.PairsChecked, "C(5,2)")
	assert.Equal(t, 10, src.totalCalls())
	require.NotNil(t, agg.Safe)
	assert.True(t, *agg.Safe, "no findings at all is safe")
}

func TestCheckInteractionsConfirmedModerate(t *testing.T) {
	src := newStubSource()
	src.add("Clopidogrel", "Pantoprazole", model.SeverityModerate)
	eng := New(src)

	agg, err := eng.CheckInteractions(context.Background(),
		[]string{"Clopidogrel", "Pantoprazole"})
	require.NoError(t, err)

	assert.Equal(t, model.SeverityCounts{Moderate: 1}, agg.Counts)
	require.Len(t, agg.Findings, 1)
	require.NotNil(t, agg.Findings[0].Record)
	require.NotNil(t, agg.Safe)
	assert.True(t, *agg.Safe, "moderate alone does not clear safe")
}

func TestCheckInteractionsLookupFailure(t *testing.T) {
	src := newStubSource()
	src.fail("DrugX", "DrugY", errors.New("upstream down"))
	eng := New(src)

	agg, err := eng.CheckInteractions(context.Background(), []string{"DrugX", "DrugY"})
	require.NoError(t, err, "a degraded lookup is not a call failure")

	assert.Equal(t, model.SeverityCounts{Unknown: 1}, agg.Counts)
	require.Len(t, agg.Findings, 1)
	assert.Equal(t, model.SeverityUnknown, agg.Findings[0].Severity)
	assert.Contains(t, agg.Findings[0].LookupError, "upstream down")
	assert.Nil(t, agg.Findings[0].Record)
	require.NotNil(t, agg.Safe)
	assert.False(t, *agg.Safe, "unknown pairs are never safe")
}

func TestCheckInteractionsCriticalClearsSafe(t *testing.T) {
	src := newStubSource()
	src.add("Warfarin", "Aspirin", model.SeverityCritical)
	src.add("Warfarin", "Ibuprofen", model.SeverityMinor)
	eng := New(src)

	agg, err := eng.CheckInteractions(context.Background(),
		[]string{"Warfarin", "Aspirin", "Ibuprofen"})
	require.NoError(t, err)

	assert.Equal(t, model.SeverityCounts{Critical: 1, Minor: 1}, agg.Counts)
	require.NotNil(t, agg.Safe)
	assert.False(t, *agg.Safe)
}

func TestCheckInteractionsSeverityOrdering(t *testing.T) {
	src := newStubSource()
	src.add("a", "b", model.SeverityMinor)
	src.add("a", "c", model.SeverityCritical)
	src.add("b", "c", model.SeverityModerate)
	src.fail("c", "d", errors.New("boom"))
	eng := New(src)

	agg, err := eng.CheckInteractions(context.Background(), []string{"a", "b", "c", "d"})
	require.NoError(t, err)

	require.Len(t, agg.Findings, 4)
	got := make([]model.Severity, 0, len(agg.Findings))
	for _, f := range agg.Findings {
		got = append(got, f.Severity)
	}
	assert.Equal(t, []model.Severity{
		model.SeverityCritical,
		model.SeverityModerate,
		model.SeverityMinor,
		model.SeverityUnknown,
	}, got)
}

func TestCheckInteractionsDeterministic(t *testing.T) {
	src := newStubSource()
	src.add("a", "b", model.SeverityModerate)
	src.add("c", "d", model.SeverityModerate)
	src.add("b", "e", model.SeverityCritical)
	eng := New(src, WithConcurrency(3))

	first, err := eng.CheckInteractions(context.Background(), []string{"e", "d", "c", "b", "a"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := eng.CheckInteractions(context.Background(), []string{"a", "b", "c", "d", "e"})
		require.NoError(t, err)
		assert.Equal(t, first.Findings, again.Findings)
		assert.Equal(t, first.Drugs, again.Drugs)
	}
}

func TestResolveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := newStubSource()
	src.errs["a+b"] = ctx.Err()
	eng := New(src)

	_, err := eng.CheckInteractions(ctx, []string{"a", "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckMultiPrescriptionCrossSourceMerge(t *testing.T) {
	src := newStubSource()
	src.add("Clopidogrel", "Pantoprazole", model.SeverityModerate)
	eng := New(src)

	prescriptions := []model.Prescription{
		{
			Source: "dr-mehta",
			Medications: []model.Medication{
				{Name: "Clopidogrel", Dose: "75 mg", Slots: []model.SlotName{model.SlotMorning}},
			},
		},
		{
			Source: "dr-rao",
			Medications: []model.Medication{
				{Name: "Pantoprazole", Dose: "40 mg", Slots: []model.SlotName{model.SlotMorning}},
			},
		},
	}

	res, err := eng.CheckMultiPrescription(context.Background(), prescriptions)
	require.NoError(t, err)

	require.Len(t, res.Aggregate.Findings, 1)
	f := res.Aggregate.Findings[0]
	assert.True(t, f.CrossSource)
	assert.Equal(t, []string{"dr-mehta"}, f.SourcesA)
	assert.Equal(t, []string{"dr-rao"}, f.SourcesB)

	morning := res.Schedule[model.SlotMorning]
	require.Len(t, morning, 2)
	for _, entry := range morning {
		assert.True(t, entry.Conflict, "both ends of a cross-source finding are flagged")
	}
}

func TestCheckMultiPrescriptionSameSourceNotCross(t *testing.T) {
	src := newStubSource()
	src.add("Warfarin", "Aspirin", model.SeverityCritical)
	eng := New(src)

	prescriptions := []model.Prescription{
		{
			Source: "dr-mehta",
			Medications: []model.Medication{
				{Name: "Warfarin", Dose: "5 mg", Slots: []model.SlotName{model.SlotEvening}},
				{Name: "Aspirin", Dose: "81 mg", Slots: []model.SlotName{model.SlotMorning}},
			},
		},
	}

	res, err := eng.CheckMultiPrescription(context.Background(), prescriptions)
	require.NoError(t, err)

	require.Len(t, res.Aggregate.Findings, 1)
	assert.False(t, res.Aggregate.Findings[0].CrossSource)

	for _, entries := range res.Schedule {
		for _, entry := range entries {
			assert.False(t, entry.Conflict, "same-source findings do not flag the schedule")
		}
	}
}

func TestCheckMultiPrescriptionNoDedupeAcrossPrescriptions(t *testing.T) {
	src := newStubSource()
	eng := New(src)

	prescriptions := []model.Prescription{
		{
			Source: "dr-mehta",
			Medications: []model.Medication{
				{Name: "Metformin", Dose: "500 mg", Slots: []model.SlotName{model.SlotMorning}},
			},
		},
		{
			Source: "dr-rao",
			Medications: []model.Medication{
				{Name: "Metformin", Dose: "850 mg", Slots: []model.SlotName{model.SlotMorning}},
			},
		},
	}

	res, err := eng.CheckMultiPrescription(context.Background(), prescriptions)
	require.NoError(t, err)

	assert.Len(t, res.Aggregate.Drugs, 1, "interaction check sees one distinct drug")
	require.Len(t, res.Schedule[model.SlotMorning], 2, "schedule keeps both entries")
	doses := []string{
		res.Schedule[model.SlotMorning][0].Dose,
		res.Schedule[model.SlotMorning][1].Dose,
	}
	assert.ElementsMatch(t, []string{"500 mg", "850 mg"}, doses)
}

func TestMergeSchedulesDefaultsToAsNeeded(t *testing.T) {
	prescriptions := []model.Prescription{
		{
			Source: "dr-mehta",
			Medications: []model.Medication{
				{Name: "Salbutamol", Dose: "100 mcg"},
			},
		},
	}

	sched := MergeSchedules(prescriptions, nil)
	require.Len(t, sched[model.SlotAsNeeded], 1)
	assert.Equal(t, "salbutamol", sched[model.SlotAsNeeded][0].Drug)
}

func TestAnnotateMissingProvenance(t *testing.T) {
	pair, _ := model.NewPair("amlodipine", "simvastatin")
	findings := []model.Finding{{Pair: pair, Severity: model.SeverityModerate}}

	Annotate(findings, model.ProvenanceMap{"amlodipine": {"dr-mehta"}})

	assert.Equal(t, []string{"dr-mehta"}, findings[0].SourcesA)
	assert.Equal(t, []string{"unknown"}, findings[0].SourcesB)
	assert.True(t, findings[0].CrossSource)
}

func TestAnnotateBothUnknownNotCross(t *testing.T) {
	pair, _ := model.NewPair("amlodipine", "simvastatin")
	findings := []model.Finding{{Pair: pair, Severity: model.SeverityModerate}}

	Annotate(findings, model.ProvenanceMap{"lisinopril": {"dr-rao"}})

	assert.Equal(t, []string{"unknown"}, findings[0].SourcesA)
	assert.Equal(t, []string{"unknown"}, findings[0].SourcesB)
	assert.False(t, findings[0].CrossSource, "unattributed drugs share the synthetic source")
}

func TestAnnotateSharedSourceNotCross(t *testing.T) {
	pair, _ := model.NewPair("amlodipine", "simvastatin")
	findings := []model.Finding{{Pair: pair, Severity: model.SeverityModerate}}

	Annotate(findings, model.ProvenanceMap{
		"amlodipine":  {"dr-mehta", "dr-rao"},
		"simvastatin": {"dr-rao"},
	})

	assert.False(t, findings[0].CrossSource)
}
