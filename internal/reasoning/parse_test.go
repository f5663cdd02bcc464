package reasoning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/inquest/internal/kb"
	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/provider"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}

func TestParsePlanDropsUnboundCapabilities(t *testing.T) {
	raw := `{"actions": [
		{"capability": "log_store", "arguments": {"intent": "samples"}},
		{"capability": "trace_store"},
		{"capability": "made_up"}
	]}`

	actions, err := parsePlan(raw, []provider.Category{provider.CategoryLogStore})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, provider.CategoryLogStore, actions[0].Capability)
	assert.Equal(t, "samples", actions[0].Arguments["intent"])
}

func TestParsePlanRejectsInvalidJSON(t *testing.T) {
	_, err := parsePlan("the logs look bad", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestParseCandidatesIgnoresModelConfidence(t *testing.T) {
	raw := `{"hypotheses": [
		{"statement": "Deploy broke it", "supporting_evidence_ids": ["deploy_runs_abc"], "confidence": 0.99},
		{"statement": "   ", "supporting_evidence_ids": []},
		{"statement": "OOM loop", "validations": ["kubectl describe pod"]}
	]}`

	candidates, err := parseCandidates(raw)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "Deploy broke it", candidates[0].Statement)
	assert.Equal(t, []string{"deploy_runs_abc"}, candidates[0].SupportingEvidenceIDs)
	assert.Equal(t, []string{"kubectl describe pod"}, candidates[1].Validations)
}

func TestParseCandidatesCapsAtFive(t *testing.T) {
	raw := `{"hypotheses": [
		{"statement": "h1"}, {"statement": "h2"}, {"statement": "h3"},
		{"statement": "h4"}, {"statement": "h5"}, {"statement": "h6"}
	]}`
	candidates, err := parseCandidates(raw)
	require.NoError(t, err)
	assert.Len(t, candidates, maxCandidates)
}

func TestCompactCapsSamples(t *testing.T) {
	samples := make([]string, 20)
	for i := range samples {
		samples[i] = "line"
	}
	compact := Compact([]models.EvidenceItem{{ID: "x", Kind: models.KindLog, Samples: samples}})
	require.Len(t, compact, 1)
	assert.Len(t, compact[0].Samples, maxCompactSamples)
}

func TestBuildPlannerPromptMentionsMissingKinds(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	prompt, err := buildPlannerPrompt(PlanRequest{
		Incident: models.Incident{
			Subject:     "checkout",
			Environment: "prod",
			Severity:    "critical",
			Title:       "error rate spike",
			TimeRange:   models.TimeRange{Start: start, End: start.Add(time.Hour)},
		},
		Excerpt: kb.Excerpt{
			KnownFailureModes: []kb.FailureMode{{Name: "db pool exhaustion", Indicators: []string{"connection refused"}}},
		},
		Available:    []provider.Category{provider.CategoryLogStore, provider.CategoryDeployTracker},
		MissingKinds: []models.EvidenceKind{models.KindDeployment},
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, "log_store")
	assert.Contains(t, prompt, "still missing: deployment")
	assert.Contains(t, prompt, "db pool exhaustion")
	assert.Contains(t, prompt, "No evidence collected yet")
}

func TestStubReasonerIsDeterministic(t *testing.T) {
	stub := NewStubReasoner()
	req := HypothesisRequest{
		Incident: models.Incident{Subject: "checkout"},
		Evidence: []CompactEvidence{
			{ID: "deploy_runs_1", Kind: "deployment", Signals: map[string]any{"deployment_refs": []string{"run:1"}}},
			{ID: "logs_sigs_1", Kind: "log", Signals: map[string]any{"signatures": []string{"timeout"}}},
			{ID: "metrics_1", Kind: "metric"},
		},
	}

	first, err := stub.Hypothesize(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, []string{"deploy_runs_1"}, first[0].SupportingEvidenceIDs)
	assert.Equal(t, []string{"logs_sigs_1"}, first[1].SupportingEvidenceIDs)

	second, err := stub.Hypothesize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
