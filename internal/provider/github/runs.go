package github

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/provider"
)

// runTracker is the shared workflow-run machinery behind the deploy and build
// trackers. Both treat CI workflow runs as their records and expose
// references in "run:<id>" form for secondary metadata lookups.
type runTracker struct {
	id     string
	client *client

	// workflowMap resolves a subject to workflow file paths.
	workflowMap map[string][]string
	// branchAllowlist restricts runs to these branches when non-empty.
	branchAllowlist []string
}

func newRunTracker(id string, config map[string]any) (*runTracker, error) {
	c, err := newClient(config)
	if err != nil {
		return nil, err
	}

	workflowMap := make(map[string][]string)
	if raw, ok := config["workflow_path_map"].(map[string]any); ok {
		for subject, v := range raw {
			switch paths := v.(type) {
			case string:
				workflowMap[subject] = []string{paths}
			case []any:
				for _, p := range paths {
					if s, ok := p.(string); ok {
						workflowMap[subject] = append(workflowMap[subject], s)
					}
				}
			}
		}
	}

	var allowlist []string
	if raw, ok := config["branch_allowlist"].([]any); ok {
		for _, b := range raw {
			if s, ok := b.(string); ok {
				allowlist = append(allowlist, s)
			}
		}
	}

	return &runTracker{
		id:              id,
		client:          c,
		workflowMap:     workflowMap,
		branchAllowlist: allowlist,
	}, nil
}

// listRuns returns the workflow runs created inside the window, newest first.
func (t *runTracker) listRuns(ctx context.Context, target provider.Target, limit int) (string, []workflowRun, error) {
	repo, err := t.client.repoFor(target.Subject)
	if err != nil {
		return "", nil, err
	}
	workflows, ok := t.workflowMap[target.Subject]
	if !ok || len(workflows) == 0 {
		return "", nil, fmt.Errorf("cannot resolve workflow path for subject %q, add workflow_path_map to provider config", target.Subject)
	}
	if limit <= 0 {
		limit = 20
	}

	perPage := limit
	if perPage < 10 {
		perPage = 10
	}
	if perPage > 50 {
		perPage = 50
	}

	var runs []workflowRun
	for _, workflow := range workflows {
		var payload struct {
			WorkflowRuns []workflowRun `json:"workflow_runs"`
		}
		params := url.Values{}
		params.Set("per_page", strconv.Itoa(perPage))
		path := fmt.Sprintf("/repos/%s/actions/workflows/%s/runs", repo, workflow)
		if err := t.client.getJSON(ctx, path, params, &payload); err != nil {
			return "", nil, err
		}

		for _, run := range payload.WorkflowRuns {
			if run.CreatedAt.Before(target.TimeRange.Start) || run.CreatedAt.After(target.TimeRange.End) {
				continue
			}
			if len(t.branchAllowlist) > 0 && !contains(t.branchAllowlist, run.HeadBranch) {
				continue
			}
			runs = append(runs, run)
		}
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return repo, runs, nil
}

// runMetadata fetches a single workflow run by its "run:<id>" reference.
// Resolution falls back to the first mapped repository: refs do not carry
// repo context, so multi-repo subjects are ambiguous here.
func (t *runTracker) runMetadata(ctx context.Context, ref string) (string, workflowRun, error) {
	idPart, ok := strings.CutPrefix(ref, "run:")
	if !ok {
		return "", workflowRun{}, fmt.Errorf("unsupported run reference %q", ref)
	}
	runID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return "", workflowRun{}, fmt.Errorf("invalid run reference %q: %w", ref, err)
	}

	repo, err := t.singleRepo()
	if err != nil {
		return "", workflowRun{}, err
	}

	var run workflowRun
	if err := t.client.getJSON(ctx, fmt.Sprintf("/repos/%s/actions/runs/%d", repo, runID), nil, &run); err != nil {
		return "", workflowRun{}, err
	}
	return repo, run, nil
}

func (t *runTracker) singleRepo() (string, error) {
	repos := make([]string, 0, len(t.client.repoMap))
	for _, r := range t.client.repoMap {
		repos = append(repos, r)
	}
	if len(repos) == 0 {
		return "", fmt.Errorf("repo_map is empty")
	}
	sort.Strings(repos)
	return repos[0], nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// runRefs formats run references for the signal bag.
func runRefs(runs []workflowRun) []string {
	refs := make([]string, 0, len(runs))
	for _, r := range runs {
		refs = append(refs, fmt.Sprintf("run:%d", r.ID))
	}
	return refs
}

func runSummaries(runs []workflowRun) []runSummary {
	out := make([]runSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, summarize(r))
	}
	return out
}

func repoPointer(repo string) models.Pointer {
	return models.Pointer{Title: "Repository", URL: "https://github.com/" + repo}
}
