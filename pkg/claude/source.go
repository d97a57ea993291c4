package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/arogya-labs/rxguard/internal/model"
)

const systemPrompt = `You are a clinical pharmacology assistant. Given two drugs, state whether a clinically relevant interaction between them is documented in standard references.

Respond with a single JSON object and nothing else:
{"interacts": bool, "severity": "critical"|"moderate"|"minor", "title": string, "description": string, "recommendation": string, "confidence": number}

Severity bands: "critical" for contraindicated or life-threatening combinations, "moderate" for combinations needing monitoring or dose adjustment, "minor" for mild or theoretical effects. Set "interacts" to false when no documented interaction exists. Keep "description" under three sentences. "confidence" is 0.0 to 1.0.`

// verdict is the JSON shape the model is instructed to return.
type verdict struct {
	Interacts      bool    `json:"interacts"`
	Severity       string  `json:"severity"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
}

// Low-confidence verdicts are discarded rather than stored as fact.
const minConfidence = 0.5

// Source adjudicates drug pairs through a Messenger. It sits last in
// the knowledge cascade, so it only sees pairs every curated source
// missed.
type Source struct {
	messenger Messenger
}

// NewSource creates a knowledge source backed by the given messenger.
func NewSource(m Messenger) *Source {
	return &Source{messenger: m}
}

// Name identifies this source in provenance and metrics labels.
func (s *Source) Name() string { return "claude" }

// Lookup asks the model to adjudicate the pair. A confident "no
// interaction" verdict and a low-confidence verdict both come back as
// (nil, nil); malformed output is an error so the caller can mark the
// pair unknown instead of trusting garbage.
func (s *Source) Lookup(ctx context.Context, pair model.Pair) (*model.InteractionRecord, error) {
	user := fmt.Sprintf("Drug A: %s\nDrug B: %s", pair.A, pair.B)

	text, err := s.messenger.CreateMessage(ctx, systemPrompt, user)
	if err != nil {
		return nil, eris.Wrap(err, "claude: adjudicate pair")
	}

	var v verdict
	if err := json.Unmarshal([]byte(extractJSON(text)), &v); err != nil {
		return nil, eris.Wrapf(err, "claude: malformed verdict for %s", pair.Key())
	}

	if !v.Interacts {
		return nil, nil
	}
	if v.Confidence < minConfidence {
		zap.L().Debug("claude: low-confidence verdict discarded",
			zap.String("pair", pair.Key()),
			zap.Float64("confidence", v.Confidence),
		)
		return nil, nil
	}

	severity, ok := model.ParseSeverity(v.Severity)
	if !ok {
		return nil, eris.Errorf("claude: unknown severity %q for %s", v.Severity, pair.Key())
	}

	title := v.Title
	if title == "" {
		title = fmt.Sprintf("%s and %s", pair.A, pair.B)
	}

	return &model.InteractionRecord{
		Pair:           pair,
		Severity:       severity,
		Title:          title,
		Description:    v.Description,
		Recommendation: v.Recommendation,
		Source:         s.Name(),
	}, nil
}

// extractJSON strips any prose around the first top-level JSON object.
// Models occasionally preface the object despite instructions.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
