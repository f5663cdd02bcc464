package github

import (
	"context"
	"fmt"
	"time"

	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/provider"
)

// DeployTracker lists deployment workflow runs and fetches per-run metadata.
type DeployTracker struct {
	*runTracker
}

// NewDeployTracker constructs a DeployTracker from knowledge-base provider
// config. Config keys: token_env, repo_map, workflow_path_map,
// branch_allowlist (optional), api_base (optional).
func NewDeployTracker(id string, config map[string]any) (provider.Capability, error) {
	tracker, err := newRunTracker(id, config)
	if err != nil {
		return nil, err
	}
	return &DeployTracker{runTracker: tracker}, nil
}

// ID implements provider.Capability.
func (d *DeployTracker) ID() string { return d.runTracker.id }

// Category implements provider.Capability.
func (d *DeployTracker) Category() provider.Category { return provider.CategoryDeployTracker }

// ListDeployments implements provider.DeployTracker.
func (d *DeployTracker) ListDeployments(ctx context.Context, req provider.DeployQueryRequest) (models.EvidenceItem, error) {
	repo, runs, err := d.listRuns(ctx, req.Target, req.Limit)
	if err != nil {
		return models.EvidenceItem{}, err
	}

	return models.EvidenceItem{
		ID:        models.EvidenceID("deploy_runs", repo, req.TimeRange),
		Kind:      models.KindDeployment,
		Source:    d.ID(),
		TimeRange: req.TimeRange,
		Query:     "deploy_runs:" + repo,
		Summary:   fmt.Sprintf("Found %d deployment run candidates in the time window.", len(runs)),
		TopSignals: map[string]any{
			"deployment_refs": runRefs(runs),
			"runs":            runSummaries(runs),
		},
		Pointers: []models.Pointer{repoPointer(repo)},
		Tags:     []string{"deploy", "runs"},
	}, nil
}

// DeploymentMetadata implements provider.DeployTracker. The reference comes
// from a prior ListDeployments signal bag in "run:<id>" form.
func (d *DeployTracker) DeploymentMetadata(ctx context.Context, ref string) (models.EvidenceItem, error) {
	repo, run, err := d.runMetadata(ctx, ref)
	if err != nil {
		return models.EvidenceItem{}, err
	}

	tr := models.TimeRange{Start: run.CreatedAt, End: run.CreatedAt}
	return models.EvidenceItem{
		ID:        models.EvidenceID("deploy_meta", ref, tr),
		Kind:      models.KindDeployment,
		Source:    d.ID(),
		TimeRange: tr,
		Query:     "deploy_run:" + ref,
		Summary:   "Fetched deployment run metadata for the referenced run.",
		TopSignals: map[string]any{
			"deployment_ref": ref,
			"metadata": map[string]string{
				"head_sha":    run.HeadSHA,
				"head_branch": run.HeadBranch,
				"status":      run.Status,
				"conclusion":  run.Conclusion,
				"created_at":  run.CreatedAt.Format(time.RFC3339),
			},
		},
		Pointers: []models.Pointer{{Title: "Run", URL: run.HTMLURL}, repoPointer(repo)},
		Tags:     []string{"deploy", "metadata"},
	}, nil
}
