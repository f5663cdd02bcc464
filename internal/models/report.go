package models

// WhatChanged groups the ids of change-related evidence collected during the
// run, so a reader can jump straight to the deltas around the incident window.
type WhatChanged struct {
	Deployments []string `json:"deployments,omitempty"`
	Builds      []string `json:"builds,omitempty"`
	Changes     []string `json:"changes,omitempty"`
}

// ImpactScope summarizes the observable blast radius extracted from the
// evidence signal bags.
type ImpactScope struct {
	ErrorSignatures []string `json:"error_signatures,omitempty"`
	EventReasons    []string `json:"event_reasons,omitempty"`
	TraceIDs        []string `json:"trace_ids,omitempty"`
}

// Report is the finalized projection of a completed investigation run.
// It is produced exactly once, at workflow termination, and is immutable
// once returned.
type Report struct {
	RunID           string       `json:"run_id"`
	IncidentSummary string       `json:"incident_summary"`
	TimeRange       TimeRange    `json:"time_range"`
	TopHypothesis   Hypothesis   `json:"top_hypothesis"`
	OtherHypotheses []Hypothesis `json:"other_hypotheses,omitempty"`
	Evidence        []EvidenceItem `json:"evidence"`
	WhatChanged     WhatChanged  `json:"what_changed"`
	ImpactScope     ImpactScope  `json:"impact_scope"`
	NextValidations []string     `json:"next_validations,omitempty"`
	Iterations      int          `json:"iterations"`
}
