package github

import (
	"context"
	"fmt"
	"time"

	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/provider"
)

// BuildTracker lists build workflow runs and fetches per-run metadata.
// It is configured the same way as the deploy tracker but points at build
// workflows.
type BuildTracker struct {
	*runTracker
}

// NewBuildTracker constructs a BuildTracker from knowledge-base provider config.
func NewBuildTracker(id string, config map[string]any) (provider.Capability, error) {
	tracker, err := newRunTracker(id, config)
	if err != nil {
		return nil, err
	}
	return &BuildTracker{runTracker: tracker}, nil
}

// ID implements provider.Capability.
func (b *BuildTracker) ID() string { return b.runTracker.id }

// Category implements provider.Capability.
func (b *BuildTracker) Category() provider.Category { return provider.CategoryBuildTracker }

// ListBuilds implements provider.BuildTracker.
func (b *BuildTracker) ListBuilds(ctx context.Context, req provider.BuildQueryRequest) (models.EvidenceItem, error) {
	repo, runs, err := b.listRuns(ctx, req.Target, req.Limit)
	if err != nil {
		return models.EvidenceItem{}, err
	}

	return models.EvidenceItem{
		ID:        models.EvidenceID("build_runs", repo, req.TimeRange),
		Kind:      models.KindBuild,
		Source:    b.ID(),
		TimeRange: req.TimeRange,
		Query:     "build_runs:" + repo,
		Summary:   fmt.Sprintf("Found %d build runs in the time window.", len(runs)),
		TopSignals: map[string]any{
			"build_refs": runRefs(runs),
			"runs":       runSummaries(runs),
		},
		Pointers: []models.Pointer{repoPointer(repo)},
		Tags:     []string{"build", "runs"},
	}, nil
}

// BuildMetadata implements provider.BuildTracker.
func (b *BuildTracker) BuildMetadata(ctx context.Context, ref string) (models.EvidenceItem, error) {
	repo, run, err := b.runMetadata(ctx, ref)
	if err != nil {
		return models.EvidenceItem{}, err
	}

	tr := models.TimeRange{Start: run.CreatedAt, End: run.CreatedAt}
	return models.EvidenceItem{
		ID:        models.EvidenceID("build_meta", ref, tr),
		Kind:      models.KindBuild,
		Source:    b.ID(),
		TimeRange: tr,
		Query:     "build_run:" + ref,
		Summary:   "Fetched build run metadata for the referenced run.",
		TopSignals: map[string]any{
			"build_ref": ref,
			"metadata": map[string]string{
				"head_sha":    run.HeadSHA,
				"head_branch": run.HeadBranch,
				"status":      run.Status,
				"conclusion":  run.Conclusion,
				"created_at":  run.CreatedAt.Format(time.RFC3339),
			},
		},
		Pointers: []models.Pointer{{Title: "Run", URL: run.HTMLURL}, repoPointer(repo)},
		Tags:     []string{"build", "metadata"},
	}, nil
}
