package models

// Hypothesis is a candidate root-cause statement. Confidence and
// ScoreBreakdown are always computed by the scoring engine; values supplied
// by the reasoning service are discarded.
type Hypothesis struct {
	ID                    string             `json:"id"`
	Statement             string             `json:"statement"`
	Confidence            float64            `json:"confidence"`
	ScoreBreakdown        map[string]float64 `json:"score_breakdown,omitempty"`
	SupportingEvidenceIDs []string           `json:"supporting_evidence_ids,omitempty"`
	Contradictions        []string           `json:"contradictions,omitempty"`
	Validations           []string           `json:"validations,omitempty"`
}
