package reasoning

import (
	"context"
	"fmt"
	"strings"
)

// StubReasoner is a deterministic, offline Reasoner. It is used by tests and
// by the CLI when no API key is configured: plans mirror the fallback order
// and hypotheses are derived mechanically from the evidence.
type StubReasoner struct{}

// NewStubReasoner returns the offline reasoner.
func NewStubReasoner() *StubReasoner { return &StubReasoner{} }

// Plan implements Planner. One action per available capability, in the order
// given. Returning everything lets the collector decide what is redundant.
func (s *StubReasoner) Plan(_ context.Context, req PlanRequest) ([]PlannedAction, error) {
	actions := make([]PlannedAction, 0, len(req.Available))
	for _, c := range req.Available {
		actions = append(actions, PlannedAction{Capability: c})
	}
	return actions, nil
}

// Hypothesize implements HypothesisGenerator. It produces at most two
// candidates: a deployment-correlation hypothesis when deployment or build
// evidence carries signals, and an error-signature hypothesis when log
// evidence does.
func (s *StubReasoner) Hypothesize(_ context.Context, req HypothesisRequest) ([]Candidate, error) {
	var candidates []Candidate

	if ids := evidenceIDsWithSignals(req.Evidence, "deployment", "build"); len(ids) > 0 {
		candidates = append(candidates, Candidate{
			Statement: fmt.Sprintf("A deployment or build change to %s in the incident window altered its behavior and caused the reported symptoms.",
				req.Incident.Subject),
			SupportingEvidenceIDs: ids,
			Validations: []string{
				"Compare the deployed revision against the previous one.",
				"Roll back the most recent deployment and observe the error rate.",
			},
		})
	}

	if ids := evidenceIDsWithSignals(req.Evidence, "log", "event"); len(ids) > 0 {
		candidates = append(candidates, Candidate{
			Statement: fmt.Sprintf("%s is failing with a recurring error pattern visible in its logs and events.",
				req.Incident.Subject),
			SupportingEvidenceIDs: ids,
			Validations: []string{
				"Inspect the top error signature and trace it to the emitting code path.",
			},
		})
	}

	return candidates, nil
}

func evidenceIDsWithSignals(evidence []CompactEvidence, kinds ...string) []string {
	var ids []string
	for _, e := range evidence {
		if len(e.Signals) == 0 {
			continue
		}
		for _, k := range kinds {
			if strings.EqualFold(e.Kind, k) {
				ids = append(ids, e.ID)
				break
			}
		}
	}
	return ids
}

var _ Reasoner = (*StubReasoner)(nil)
