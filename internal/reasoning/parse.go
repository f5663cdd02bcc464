package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/moolen/inquest/internal/provider"
)

const maxCandidates = 5

// extractJSON strips markdown fences the model may wrap around its answer and
// returns the JSON body. Anything else is passed through for the decoder to
// reject.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// parsePlan decodes a planner response. Actions naming capabilities outside
// the allowed set are dropped, not errors: the model proposing an unbound
// capability is expected and the fallback planner covers gaps.
func parsePlan(raw string, allowed []provider.Category) ([]PlannedAction, error) {
	var payload struct {
		Actions []struct {
			Capability string         `json:"capability"`
			Arguments  map[string]any `json:"arguments"`
		} `json:"actions"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &payload); err != nil {
		return nil, fmt.Errorf("planner response is not valid JSON: %w", err)
	}

	allowedSet := make(map[provider.Category]bool, len(allowed))
	for _, c := range allowed {
		allowedSet[c] = true
	}

	var actions []PlannedAction
	for _, a := range payload.Actions {
		cat := provider.Category(a.Capability)
		if !allowedSet[cat] {
			continue
		}
		actions = append(actions, PlannedAction{Capability: cat, Arguments: a.Arguments})
	}
	return actions, nil
}

// parseCandidates decodes a hypothesis response. Model-assigned confidence is
// ignored; empty statements are dropped; at most maxCandidates survive.
func parseCandidates(raw string) ([]Candidate, error) {
	var payload struct {
		Hypotheses []struct {
			Statement             string   `json:"statement"`
			SupportingEvidenceIDs []string `json:"supporting_evidence_ids"`
			Contradictions        []string `json:"contradictions"`
			Validations           []string `json:"validations"`
		} `json:"hypotheses"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &payload); err != nil {
		return nil, fmt.Errorf("hypothesis response is not valid JSON: %w", err)
	}

	var out []Candidate
	for _, h := range payload.Hypotheses {
		statement := strings.TrimSpace(h.Statement)
		if statement == "" {
			continue
		}
		out = append(out, Candidate{
			Statement:             statement,
			SupportingEvidenceIDs: h.SupportingEvidenceIDs,
			Contradictions:        h.Contradictions,
			Validations:           h.Validations,
		})
		if len(out) == maxCandidates {
			break
		}
	}
	return out, nil
}
