package kb

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/arogya-labs/rxguard/internal/model"
)

// ImportReport summarizes a curated CSV import.
type ImportReport struct {
	Rows       int                  `json:"rows"`
	Imported   int                  `json:"imported"`
	Skipped    int                  `json:"skipped"`
	BySeverity model.SeverityCounts `json:"by_severity"`
}

// ImportCSV streams a curated interaction CSV into the store. Expected
// columns (header row required, order free): drug_a, drug_b, severity,
// and optionally title, description, recommendation. Rows with a blank
// drug, a self-pair, or an unrecognized severity are skipped and
// counted. Duplicate pairs collapse, last row wins.
func ImportCSV(ctx context.Context, store Store, r io.Reader, sourceLabel string) (*ImportReport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "kb: read csv header")
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"drug_a", "drug_b", "severity"} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("kb: csv missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	report := &ImportReport{}
	for {
		if err := ctx.Err(); err != nil {
			return report, eris.Wrap(err, "kb: import cancelled")
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return report, eris.Wrapf(err, "kb: read csv row %d", report.Rows+2)
		}
		report.Rows++

		pair, ok := model.NewPair(
			model.NormalizeName(field(row, "drug_a")),
			model.NormalizeName(field(row, "drug_b")),
		)
		if !ok {
			report.Skipped++
			continue
		}

		severity, ok := model.ParseSeverity(field(row, "severity"))
		if !ok {
			zap.L().Debug("kb: skipping row with unrecognized severity",
				zap.String("pair", pair.Key()),
				zap.String("severity", field(row, "severity")),
			)
			report.Skipped++
			continue
		}

		rec := model.InteractionRecord{
			Pair:           pair,
			Severity:       severity,
			Title:          field(row, "title"),
			Description:    field(row, "description"),
			Recommendation: field(row, "recommendation"),
			Source:         sourceLabel,
		}
		if err := store.UpsertInteraction(ctx, rec); err != nil {
			return report, err
		}

		report.Imported++
		addSeverityCount(&report.BySeverity, severity, 1)
	}

	zap.L().Info("kb: import complete",
		zap.Int("rows", report.Rows),
		zap.Int("imported", report.Imported),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}
