package engine

import (
	"encoding/json"
	"fmt"

	"github.com/moolen/inquest/internal/models"
)

const maxNextValidations = 5

// BuildReport projects the terminal state into the immutable report.
func BuildReport(state *State) *models.Report {
	report := &models.Report{
		RunID:           state.RunID,
		IncidentSummary: incidentSummary(state.Incident),
		TimeRange:       state.Incident.TimeRange,
		Evidence:        state.Evidence,
		WhatChanged:     whatChanged(state.Evidence),
		ImpactScope:     impactScope(state.Evidence),
		Iterations:      state.Iteration,
	}

	if len(state.Hypotheses) > 0 {
		report.TopHypothesis = state.Hypotheses[0]
		report.OtherHypotheses = state.Hypotheses[1:]
	}
	report.NextValidations = nextValidations(state.Hypotheses)
	return report
}

func incidentSummary(incident models.Incident) string {
	return fmt.Sprintf("%s [%s/%s, severity %s]",
		incident.Title, incident.Subject, incident.Environment, incident.Severity)
}

// whatChanged groups change-related evidence ids by kind so a reader can jump
// straight to the deltas around the incident window.
func whatChanged(evidence []models.EvidenceItem) models.WhatChanged {
	var wc models.WhatChanged
	for _, e := range evidence {
		switch e.Kind {
		case models.KindDeployment:
			wc.Deployments = append(wc.Deployments, e.ID)
		case models.KindBuild:
			wc.Builds = append(wc.Builds, e.ID)
		case models.KindChange:
			wc.Changes = append(wc.Changes, e.ID)
		}
	}
	return wc
}

// impactScope extracts the observable blast radius from the evidence signal
// bags: top error signatures, event reasons, and trace ids.
func impactScope(evidence []models.EvidenceItem) models.ImpactScope {
	var scope models.ImpactScope
	for _, e := range evidence {
		switch e.Kind {
		case models.KindLog:
			var sigs []struct {
				ErrType string `json:"err_type"`
				ErrMsg  string `json:"err_msg"`
			}
			if decodeSignal(e.TopSignals["signatures"], &sigs) {
				for _, s := range sigs {
					scope.ErrorSignatures = appendUnique(scope.ErrorSignatures, signatureLabel(s.ErrType, s.ErrMsg))
				}
			}
		case models.KindEvent:
			var reasons []struct {
				Name string `json:"name"`
			}
			if decodeSignal(e.TopSignals["reasons"], &reasons) {
				for _, r := range reasons {
					scope.EventReasons = appendUnique(scope.EventReasons, r.Name)
				}
			}
		case models.KindTrace:
			for _, id := range stringSlice(e.TopSignals["trace_ids"]) {
				scope.TraceIDs = appendUnique(scope.TraceIDs, id)
			}
		}
	}
	return scope
}

// nextValidations merges the ranked hypotheses' validations, deduplicated, in
// rank order.
func nextValidations(hypotheses []models.Hypothesis) []string {
	var out []string
	for _, h := range hypotheses {
		for _, v := range h.Validations {
			out = appendUnique(out, v)
			if len(out) == maxNextValidations {
				return out
			}
		}
	}
	return out
}

// decodeSignal converts an open signal-bag value into a typed form via a JSON
// round trip. Signal values may be concrete provider structs or generic maps
// after a serialization boundary; this handles both.
func decodeSignal(v any, out any) bool {
	if v == nil {
		return false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func signatureLabel(errType, errMsg string) string {
	switch {
	case errType != "" && errMsg != "":
		return errType + ": " + errMsg
	case errType != "":
		return errType
	default:
		return errMsg
	}
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
