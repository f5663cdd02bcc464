// Package models defines the core data types for incident investigations:
// incidents, evidence items, hypotheses, and the finalized report.
package models

import (
	"strings"
	"time"
)

// TimeRange is a closed interval of wall-clock time. Start is always <= End
// for ranges produced by normalization; Validate enforces it for external input.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks that the range is well-formed.
func (tr TimeRange) Validate() error {
	if tr.Start.IsZero() || tr.End.IsZero() {
		return NewValidationError("time range requires both start and end")
	}
	if tr.Start.After(tr.End) {
		return NewValidationError("time range start %s is after end %s",
			tr.Start.Format(time.RFC3339), tr.End.Format(time.RFC3339))
	}
	return nil
}

// Intersects reports whether two ranges overlap. The test is inclusive on
// both boundaries: a.Start <= b.End && a.End >= b.Start.
func (tr TimeRange) Intersects(other TimeRange) bool {
	return !tr.Start.After(other.End) && !tr.End.Before(other.Start)
}

// Shift returns a copy of the range with both boundaries moved by d.
func (tr TimeRange) Shift(d time.Duration) TimeRange {
	return TimeRange{Start: tr.Start.Add(d), End: tr.End.Add(d)}
}

// Pad returns a copy of the range widened by before/after on each side.
func (tr TimeRange) Pad(before, after time.Duration) TimeRange {
	return TimeRange{Start: tr.Start.Add(-before), End: tr.End.Add(after)}
}

// Incident is the normalized form of the triggering problem. It is created
// once per investigation run and never mutated afterwards.
type Incident struct {
	Title       string            `json:"title"`
	Severity    string            `json:"severity"`
	Environment string            `json:"environment"`
	Subject     string            `json:"subject"`
	TimeRange   TimeRange         `json:"time_range"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Raw         map[string]any    `json:"raw,omitempty"`
}

// environmentAliases maps the values seen in alert labels to the three
// canonical environments.
var environmentAliases = map[string]string{
	"prod":        "prod",
	"production":  "prod",
	"prd":         "prod",
	"staging":     "staging",
	"stage":       "staging",
	"stg":         "staging",
	"dev":         "dev",
	"development": "dev",
}

// CanonicalEnvironment maps an environment label value to one of
// prod|staging|dev. Unknown values fail with a validation error so a typo in
// alert routing surfaces immediately instead of loading the wrong KB slice.
func CanonicalEnvironment(value string) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(value))
	if raw == "" {
		return "", NewValidationError("environment is required")
	}
	env, ok := environmentAliases[raw]
	if !ok {
		return "", NewValidationError("unknown environment %q", value)
	}
	return env, nil
}
