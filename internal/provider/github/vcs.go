package github

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/provider"
)

// VCS lists merged pull requests as change records.
type VCS struct {
	id     string
	client *client
}

// NewVCS constructs a VCS from knowledge-base provider config.
// Config keys: token_env, repo_map, api_base (optional).
func NewVCS(id string, config map[string]any) (provider.Capability, error) {
	c, err := newClient(config)
	if err != nil {
		return nil, err
	}
	return &VCS{id: id, client: c}, nil
}

// ID implements provider.Capability.
func (v *VCS) ID() string { return v.id }

// Category implements provider.Capability.
func (v *VCS) Category() provider.Category { return provider.CategoryVCS }

// ListChanges implements provider.VCS. Only merged pull requests inside the
// window are reported; commit-level listing is not implemented.
func (v *VCS) ListChanges(ctx context.Context, req provider.ChangeQueryRequest) (models.EvidenceItem, error) {
	repo, err := v.client.repoFor(req.Subject)
	if err != nil {
		return models.EvidenceItem{}, err
	}
	limit := req.Limit
	if limit <= 0 || limit > 50 {
		limit = 30
	}

	type pullRequest struct {
		Number   int        `json:"number"`
		Title    string     `json:"title"`
		MergedAt *time.Time `json:"merged_at"`
		HTMLURL  string     `json:"html_url"`
		User     struct {
			Login string `json:"login"`
		} `json:"user"`
	}

	var prs []pullRequest
	if req.IncludePRs {
		params := url.Values{}
		params.Set("state", "closed")
		params.Set("per_page", strconv.Itoa(limit))
		params.Set("sort", "updated")
		params.Set("direction", "desc")
		if err := v.client.getJSON(ctx, "/repos/"+repo+"/pulls", params, &prs); err != nil {
			return models.EvidenceItem{}, err
		}
	}

	type mergedPR struct {
		Number   int    `json:"number"`
		Title    string `json:"title"`
		MergedAt string `json:"merged_at"`
		URL      string `json:"url"`
		Author   string `json:"author"`
	}

	var merged []mergedPR
	var samples []string
	for _, pr := range prs {
		if pr.MergedAt == nil {
			continue
		}
		if pr.MergedAt.Before(req.TimeRange.Start) || pr.MergedAt.After(req.TimeRange.End) {
			continue
		}
		merged = append(merged, mergedPR{
			Number:   pr.Number,
			Title:    pr.Title,
			MergedAt: pr.MergedAt.Format(time.RFC3339),
			URL:      pr.HTMLURL,
			Author:   pr.User.Login,
		})
		if len(samples) < 10 {
			samples = append(samples, fmt.Sprintf("#%d %s", pr.Number, pr.Title))
		}
	}

	return models.EvidenceItem{
		ID:         models.EvidenceID("changes", repo, req.TimeRange),
		Kind:       models.KindChange,
		Source:     v.id,
		TimeRange:  req.TimeRange,
		Query:      "merged_changes:" + repo,
		Summary:    fmt.Sprintf("Found %d merged change records in the buffered window.", len(merged)),
		Samples:    samples,
		TopSignals: map[string]any{"merged_prs": merged},
		Pointers:   []models.Pointer{repoPointer(repo)},
		Tags:       []string{"changes", "vcs"},
	}, nil
}
