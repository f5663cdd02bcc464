package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/moolen/inquest/internal/kb"
	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/reasoning"
)

// Score component weights. The weighted sum deliberately exceeds 1.0 before
// clamping; a hypothesis does not need a perfect profile to reach full
// confidence.
const (
	weightCoverage    = 0.25
	weightTemporal    = 0.20
	weightKBMatch     = 0.20
	weightDeploy      = 0.15
	weightSpecificity = 0.20

	deploySignalValue       = 0.8
	contradictionUnit       = 0.2
	contradictionPenaltyCap = 0.6
	coverageDenominator     = 4.0
)

// coverageKinds are the evidence kinds that count towards coverage.
var coverageKinds = map[models.EvidenceKind]bool{
	models.KindLog:        true,
	models.KindEvent:      true,
	models.KindDeployment: true,
	models.KindChange:     true,
	models.KindBuild:      true,
	models.KindMetric:     true,
	models.KindTrace:      true,
}

// ScoreCandidates turns raw candidates into scored, ranked hypotheses. The
// function is pure: identical inputs always produce identical output. Ranking
// is stable, so equal totals keep candidate order.
//
// An empty candidate list yields the sentinel hypothesis; a report never
// ships without one.
func ScoreCandidates(candidates []reasoning.Candidate, state *State) []models.Hypothesis {
	if len(candidates) == 0 {
		return []models.Hypothesis{sentinelHypothesis()}
	}

	hypotheses := make([]models.Hypothesis, 0, len(candidates))
	for i, c := range candidates {
		breakdown, total := scoreOne(c, state)
		hypotheses = append(hypotheses, models.Hypothesis{
			ID:                    fmt.Sprintf("hyp_%d", i+1),
			Statement:             c.Statement,
			Confidence:            total,
			ScoreBreakdown:        breakdown,
			SupportingEvidenceIDs: c.SupportingEvidenceIDs,
			Contradictions:        c.Contradictions,
			Validations:           c.Validations,
		})
	}

	sort.SliceStable(hypotheses, func(i, j int) bool {
		return hypotheses[i].Confidence > hypotheses[j].Confidence
	})
	return hypotheses
}

func scoreOne(c reasoning.Candidate, state *State) (map[string]float64, float64) {
	// Dangling evidence ids are dropped silently.
	var supporting []models.EvidenceItem
	for _, id := range c.SupportingEvidenceIDs {
		if item, ok := state.EvidenceByID(id); ok {
			supporting = append(supporting, item)
		}
	}

	coverage := coverageScore(supporting)
	deploySignal := deploySignalScore(supporting)
	specificity := specificityScore(c.Statement)
	temporal := temporalAlignmentScore(supporting, state.Incident.TimeRange)
	kbMatch := kbMatchScore(c.Statement, state.Slice.Subject.KnownFailureModes)
	penalty := contradictionPenalty(len(c.Contradictions))

	total := weightCoverage*coverage +
		weightTemporal*temporal +
		weightKBMatch*kbMatch +
		weightDeploy*deploySignal +
		weightSpecificity*specificity -
		penalty
	total = clamp01(total)

	breakdown := map[string]float64{
		"coverage":              coverage,
		"temporal_alignment":    temporal,
		"kb_match":              kbMatch,
		"deploy_signal":         deploySignal,
		"specificity":           specificity,
		"contradiction_penalty": penalty,
	}
	return breakdown, total
}

func coverageScore(supporting []models.EvidenceItem) float64 {
	kinds := make(map[models.EvidenceKind]bool)
	for _, e := range supporting {
		if coverageKinds[e.Kind] {
			kinds[e.Kind] = true
		}
	}
	score := float64(len(kinds)) / coverageDenominator
	if score > 1 {
		score = 1
	}
	return score
}

func deploySignalScore(supporting []models.EvidenceItem) float64 {
	for _, e := range supporting {
		if (e.Kind == models.KindDeployment || e.Kind == models.KindBuild) && e.HasSignals() {
			return deploySignalValue
		}
	}
	return 0
}

func specificityScore(statement string) float64 {
	switch {
	case len(statement) >= 80:
		return 0.6
	case len(statement) >= 40:
		return 0.4
	default:
		return 0.2
	}
}

func temporalAlignmentScore(supporting []models.EvidenceItem, incident models.TimeRange) float64 {
	if len(supporting) == 0 {
		return 0
	}
	overlapping := 0
	for _, e := range supporting {
		if e.TimeRange.Intersects(incident) {
			overlapping++
		}
	}
	return float64(overlapping) / float64(len(supporting))
}

func kbMatchScore(statement string, failureModes []kb.FailureMode) float64 {
	lower := strings.ToLower(statement)
	for _, fm := range failureModes {
		for _, indicator := range fm.Indicators {
			if indicator == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(indicator)) {
				return 1
			}
		}
	}
	return 0
}

func contradictionPenalty(n int) float64 {
	penalty := contradictionUnit * float64(n)
	if penalty > contradictionPenaltyCap {
		penalty = contradictionPenaltyCap
	}
	return penalty
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sentinelHypothesis() models.Hypothesis {
	return models.Hypothesis{
		ID:         "hyp_sentinel",
		Statement:  "Insufficient evidence to determine a probable root cause.",
		Confidence: 0,
		ScoreBreakdown: map[string]float64{
			"coverage":              0,
			"temporal_alignment":    0,
			"kb_match":              0,
			"deploy_signal":         0,
			"specificity":           0,
			"contradiction_penalty": 0,
		},
		Validations: []string{
			"Collect additional evidence: verify provider bindings for the subject and widen the time window.",
		},
	}
}
