package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/provider"
)

func testConfig(t *testing.T, apiBase string) map[string]any {
	t.Helper()
	t.Setenv("TEST_GITHUB_TOKEN", "token-123")
	return map[string]any{
		"token_env": "TEST_GITHUB_TOKEN",
		"api_base":  apiBase,
		"repo_map":  map[string]any{"checkout": "acme/checkout"},
		"workflow_path_map": map[string]any{
			"checkout": "deploy.yml",
		},
	}
}

func window(t *testing.T) models.TimeRange {
	t.Helper()
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return models.TimeRange{Start: start, End: start.Add(time.Hour)}
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := newClient(map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token_env")
}

func TestListDeploymentsFiltersWindowAndBranch(t *testing.T) {
	tr := window(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/checkout/actions/workflows/deploy.yml/runs", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		runs := map[string]any{
			"workflow_runs": []map[string]any{
				{"id": 1, "created_at": tr.Start.Add(10 * time.Minute), "head_branch": "main", "conclusion": "success"},
				{"id": 2, "created_at": tr.Start.Add(20 * time.Minute), "head_branch": "feature", "conclusion": "success"},
				{"id": 3, "created_at": tr.Start.Add(-2 * time.Hour), "head_branch": "main", "conclusion": "success"},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(runs))
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	cfg["branch_allowlist"] = []any{"main"}

	cap, err := NewDeployTracker("deploys", cfg)
	require.NoError(t, err)

	item, err := cap.(*DeployTracker).ListDeployments(context.Background(), provider.DeployQueryRequest{
		Target: provider.Target{Subject: "checkout", TimeRange: tr},
	})
	require.NoError(t, err)

	assert.Equal(t, models.KindDeployment, item.Kind)
	refs, ok := item.TopSignals["deployment_refs"].([]string)
	require.True(t, ok)
	// Run 2 is off-branch, run 3 outside the window.
	assert.Equal(t, []string{"run:1"}, refs)
}

func TestListRunsUnknownSubject(t *testing.T) {
	cap, err := NewDeployTracker("deploys", testConfig(t, "http://unused.invalid"))
	require.NoError(t, err)

	_, err = cap.(*DeployTracker).ListDeployments(context.Background(), provider.DeployQueryRequest{
		Target: provider.Target{Subject: "payments", TimeRange: window(t)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repo_map")
}

func TestDeploymentMetadata(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 15, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/checkout/actions/runs/42", r.URL.Path)
		run := map[string]any{
			"id":          42,
			"created_at":  created,
			"status":      "completed",
			"conclusion":  "success",
			"head_sha":    "abc123",
			"head_branch": "main",
			"html_url":    "https://github.com/acme/checkout/actions/runs/42",
		}
		require.NoError(t, json.NewEncoder(w).Encode(run))
	}))
	defer server.Close()

	cap, err := NewDeployTracker("deploys", testConfig(t, server.URL))
	require.NoError(t, err)

	item, err := cap.(*DeployTracker).DeploymentMetadata(context.Background(), "run:42")
	require.NoError(t, err)

	assert.Equal(t, "run:42", item.TopSignals["deployment_ref"])
	meta, ok := item.TopSignals["metadata"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "abc123", meta["head_sha"])
	assert.Equal(t, "main", meta["head_branch"])
	assert.Equal(t, created, item.TimeRange.Start)
}

func TestDeploymentMetadataBadRef(t *testing.T) {
	cap, err := NewDeployTracker("deploys", testConfig(t, "http://unused.invalid"))
	require.NoError(t, err)

	_, err = cap.(*DeployTracker).DeploymentMetadata(context.Background(), "sha:abc123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported run reference")
}

func TestListChangesFiltersMergedWindow(t *testing.T) {
	tr := window(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/checkout/pulls", r.URL.Path)
		assert.Equal(t, "closed", r.URL.Query().Get("state"))

		inWindow := tr.Start.Add(30 * time.Minute)
		outside := tr.Start.Add(-3 * time.Hour)
		prs := []map[string]any{
			{"number": 10, "title": "Fix retry loop", "merged_at": inWindow, "html_url": "https://github.com/acme/checkout/pull/10", "user": map[string]string{"login": "alice"}},
			{"number": 11, "title": "Closed without merge", "merged_at": nil},
			{"number": 12, "title": "Old change", "merged_at": outside},
		}
		require.NoError(t, json.NewEncoder(w).Encode(prs))
	}))
	defer server.Close()

	cap, err := NewVCS("vcs", testConfig(t, server.URL))
	require.NoError(t, err)

	item, err := cap.(*VCS).ListChanges(context.Background(), provider.ChangeQueryRequest{
		Target:     provider.Target{Subject: "checkout", TimeRange: tr},
		IncludePRs: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.KindChange, item.Kind)
	assert.Equal(t, []string{"#10 Fix retry loop"}, item.Samples)
}

func TestBuildTrackerSignalKeys(t *testing.T) {
	tr := window(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runs := map[string]any{
			"workflow_runs": []map[string]any{
				{"id": 7, "created_at": tr.Start.Add(5 * time.Minute), "head_branch": "main", "conclusion": "failure"},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(runs))
	}))
	defer server.Close()

	cap, err := NewBuildTracker("builds", testConfig(t, server.URL))
	require.NoError(t, err)

	item, err := cap.(*BuildTracker).ListBuilds(context.Background(), provider.BuildQueryRequest{
		Target: provider.Target{Subject: "checkout", TimeRange: tr},
	})
	require.NoError(t, err)

	assert.Equal(t, models.KindBuild, item.Kind)
	refs, ok := item.TopSignals["build_refs"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"run:7"}, refs)
}
