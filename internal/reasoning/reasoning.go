// Package reasoning implements the model-backed planning and hypothesis
// generation steps of an investigation run.
//
// The engine treats both steps as untrusted: planned actions are validated
// against the capabilities the knowledge slice actually binds, and candidate
// hypotheses carry no model-assigned confidence. Scoring happens outside this
// package, deterministically.
package reasoning

import (
	"context"

	"github.com/moolen/inquest/internal/kb"
	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/provider"
)

// PlannedAction is one evidence-collection action proposed by the planner.
// Arguments are capability-specific and interpreted by the collector.
type PlannedAction struct {
	Capability provider.Category `json:"capability"`
	Arguments  map[string]any    `json:"arguments,omitempty"`
}

// Candidate is a hypothesis proposed by the generator, before scoring.
// Any confidence the model claims is discarded during parsing.
type Candidate struct {
	Statement             string   `json:"statement"`
	SupportingEvidenceIDs []string `json:"supporting_evidence_ids"`
	Contradictions        []string `json:"contradictions,omitempty"`
	Validations           []string `json:"validations,omitempty"`
}

// CompactEvidence is the reduced evidence form shipped to the model. Samples
// are capped so one noisy provider cannot dominate the prompt.
type CompactEvidence struct {
	ID      string         `json:"id"`
	Kind    string         `json:"kind"`
	Summary string         `json:"summary"`
	Signals map[string]any `json:"top_signals,omitempty"`
	Samples []string       `json:"samples,omitempty"`
}

const maxCompactSamples = 8

// Compact reduces full evidence items to their prompt form.
func Compact(items []models.EvidenceItem) []CompactEvidence {
	out := make([]CompactEvidence, 0, len(items))
	for _, item := range items {
		samples := item.Samples
		if len(samples) > maxCompactSamples {
			samples = samples[:maxCompactSamples]
		}
		out = append(out, CompactEvidence{
			ID:      item.ID,
			Kind:    string(item.Kind),
			Summary: item.Summary,
			Signals: item.TopSignals,
			Samples: samples,
		})
	}
	return out
}

// PlanRequest carries everything the planner sees for one iteration.
type PlanRequest struct {
	Incident  models.Incident
	Excerpt   kb.Excerpt
	Available []provider.Category
	// MissingKinds lists evidence kinds not yet collected; later iterations
	// should target these.
	MissingKinds []models.EvidenceKind
	Evidence     []CompactEvidence
	Iteration    int
}

// HypothesisRequest carries everything the generator sees for one iteration.
type HypothesisRequest struct {
	Incident  models.Incident
	Excerpt   kb.Excerpt
	Evidence  []CompactEvidence
	Iteration int
}

// Planner proposes evidence-collection actions for the current iteration.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) ([]PlannedAction, error)
}

// HypothesisGenerator proposes root-cause candidates from collected evidence.
type HypothesisGenerator interface {
	Hypothesize(ctx context.Context, req HypothesisRequest) ([]Candidate, error)
}

// Reasoner is the combined interface the engine consumes.
type Reasoner interface {
	Planner
	HypothesisGenerator
}
