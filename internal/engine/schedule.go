package engine

import "github.com/arogya-labs/rxguard/internal/model"

// MergeSchedules folds the medications of every prescription into a
// single daily schedule keyed by dosing slot. Entries are appended in
// prescription order and never deduplicated across prescriptions: the
// same drug prescribed twice appears twice, because collapsing it
// would hide a double-dosing hazard.
//
// An entry is flagged as a conflict when its drug participates in a
// cross-source finding backed by a knowledge base record. Unknown
// pairs without a record do not flag schedule entries.
func MergeSchedules(prescriptions []model.Prescription, findings []model.Finding) model.Schedule {
	conflicted := make(map[string]bool)
	for _, f := range findings {
		if f.CrossSource && f.Record != nil {
			conflicted[f.Pair.A] = true
			conflicted[f.Pair.B] = true
		}
	}

	sched := make(model.Schedule)
	for _, p := range prescriptions {
		for _, med := range p.Medications {
			id := model.NormalizeName(med.Name)
			if id == "" {
				continue
			}
			slots := med.Slots
			if len(slots) == 0 {
				slots = []model.SlotName{model.SlotAsNeeded}
			}
			for _, slot := range slots {
				sched[slot] = append(sched[slot], model.ScheduleEntry{
					Drug:     id,
					Name:     med.Name,
					Dose:     med.Dose,
					Source:   p.Source,
					Conflict: conflicted[id],
				})
			}
		}
	}
	return sched
}
