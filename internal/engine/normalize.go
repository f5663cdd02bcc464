package engine

import (
	"time"

	"github.com/moolen/inquest/internal/models"
)

const (
	// preBuffer widens the investigation window before the alert fired, so
	// evidence about the triggering change is inside the window.
	preBuffer = 10 * time.Minute
	// syntheticWindow is used when the payload carries no start time at all.
	syntheticWindow = 60 * time.Minute
)

// subjectLabels is the fallback chain for resolving the incident subject from
// alert labels.
var subjectLabels = []string{"subject", "service", "app", "job"}

// NormalizeWebhook converts an alertmanager-style webhook payload into the
// canonical Incident. It is the only place raw payloads are interpreted; the
// rest of the engine sees the normalized form.
//
// Alertmanager notifications wrap the interesting fields in an envelope: the
// labels, annotations, and timestamps live under alerts[0]. Flat payloads are
// accepted too, with a per-field fallback to the top level.
//
// Fails with a ValidationError when the subject cannot be resolved or the
// environment label is unknown.
func NormalizeWebhook(payload map[string]any, now time.Time) (models.Incident, error) {
	alert := firstAlert(payload)

	labels := fieldStrings(alert, payload, "labels")
	annotations := fieldStrings(alert, payload, "annotations")

	subject := firstLabel(labels, subjectLabels...)
	if subject == "" {
		return models.Incident{}, models.NewValidationError(
			"cannot resolve subject: none of %v present in labels", subjectLabels)
	}

	env, err := models.CanonicalEnvironment(firstLabel(labels, "environment", "env"))
	if err != nil {
		return models.Incident{}, err
	}

	severity := firstLabel(labels, "severity", "level")
	if severity == "" {
		severity = "unknown"
	}

	title := annotations["summary"]
	if title == "" {
		title = annotations["title"]
	}
	if title == "" {
		title = labels["alertname"]
	}
	if title == "" {
		title = "incident on " + subject
	}

	end := fieldTime(alert, payload, "endsAt")
	if end.IsZero() {
		end = now
	}
	start := fieldTime(alert, payload, "startsAt")
	if start.IsZero() {
		start = end.Add(-syntheticWindow)
	}
	start = start.Add(-preBuffer)
	if start.After(end) {
		start, end = end, start
	}

	return models.Incident{
		Title:       title,
		Severity:    severity,
		Environment: env,
		Subject:     subject,
		TimeRange:   models.TimeRange{Start: start.UTC(), End: end.UTC()},
		Labels:      labels,
		Annotations: annotations,
		Raw:         payload,
	}, nil
}

// firstAlert unwraps the Alertmanager envelope. Grouped notifications carry
// the per-alert fields under "alerts"; the first alert drives the
// investigation. Returns nil for flat payloads.
func firstAlert(payload map[string]any) map[string]any {
	alerts, ok := payload["alerts"].([]any)
	if !ok || len(alerts) == 0 {
		return nil
	}
	alert, _ := alerts[0].(map[string]any)
	return alert
}

// fieldStrings reads a string map field from the alert, falling back to the
// top-level payload when the alert lacks it.
func fieldStrings(alert, payload map[string]any, key string) map[string]string {
	if vals := stringValues(alert, key); len(vals) > 0 {
		return vals
	}
	return stringValues(payload, key)
}

// fieldTime reads a timestamp from the alert, falling back to the top-level
// payload.
func fieldTime(alert, payload map[string]any, key string) time.Time {
	if t := parseTime(alert, key); !t.IsZero() {
		return t
	}
	return parseTime(payload, key)
}

func stringValues(payload map[string]any, key string) map[string]string {
	out := make(map[string]string)
	raw, ok := payload[key].(map[string]any)
	if !ok {
		return out
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func firstLabel(labels map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := labels[k]; v != "" {
			return v
		}
	}
	return ""
}

func parseTime(payload map[string]any, key string) time.Time {
	raw, ok := payload[key].(string)
	if !ok || raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	// Alertmanager uses the zero time for "still firing".
	if t.Year() <= 1 {
		return time.Time{}
	}
	return t
}
