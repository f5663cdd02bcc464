// Package github implements the deploy tracker, build tracker, and VCS
// capabilities against the GitHub REST API. Workflow runs double as
// deployment/build records; merged pull requests are the change log.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/moolen/inquest/internal/provider"
)

const (
	defaultAPIBase = "https://api.github.com"
	defaultTimeout = 20 * time.Second
)

// Register adds all github-backed factories to the table.
func Register(table *provider.Table) error {
	if err := table.Register(provider.CategoryDeployTracker, "github_actions", NewDeployTracker); err != nil {
		return err
	}
	if err := table.Register(provider.CategoryBuildTracker, "github_actions", NewBuildTracker); err != nil {
		return err
	}
	return table.Register(provider.CategoryVCS, "github", NewVCS)
}

// client is the shared GitHub API plumbing for the three capabilities.
type client struct {
	apiBase string
	token   string
	http    *http.Client

	// repoMap resolves an incident subject to an owner/repo pair.
	repoMap map[string]string
}

func newClient(config map[string]any) (*client, error) {
	tokenEnv, _ := config["token_env"].(string)
	if tokenEnv == "" {
		return nil, fmt.Errorf("github provider requires 'token_env' in config")
	}
	token := os.Getenv(tokenEnv)
	if token == "" {
		return nil, fmt.Errorf("environment variable %q is not set", tokenEnv)
	}

	apiBase := defaultAPIBase
	if base, _ := config["api_base"].(string); base != "" {
		apiBase = base
	}

	repoMap := make(map[string]string)
	if raw, ok := config["repo_map"].(map[string]any); ok {
		for subject, repo := range raw {
			if s, ok := repo.(string); ok {
				repoMap[subject] = s
			}
		}
	}

	return &client{
		apiBase: apiBase,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		repoMap: repoMap,
	}, nil
}

func (c *client) repoFor(subject string) (string, error) {
	repo, ok := c.repoMap[subject]
	if !ok {
		return "", fmt.Errorf("cannot resolve repository for subject %q, add repo_map to provider config", subject)
	}
	return repo, nil
}

// getJSON performs an authenticated GET and decodes the JSON response into out.
func (c *client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.apiBase + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build github request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", "inquest")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github request %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode github response: %w", err)
	}
	return nil
}

// workflowRun is the subset of the workflow run payload the trackers use.
type workflowRun struct {
	ID         int64     `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	HTMLURL    string    `json:"html_url"`
	HeadSHA    string    `json:"head_sha"`
	HeadBranch string    `json:"head_branch"`
}

// runSummary is the signal-bag form of a workflow run.
type runSummary struct {
	RunID      int64  `json:"run_id"`
	CreatedAt  string `json:"created_at"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	URL        string `json:"url"`
	HeadSHA    string `json:"head_sha"`
	HeadBranch string `json:"head_branch"`
}

func summarize(run workflowRun) runSummary {
	return runSummary{
		RunID:      run.ID,
		CreatedAt:  run.CreatedAt.Format(time.RFC3339),
		Status:     run.Status,
		Conclusion: run.Conclusion,
		URL:        run.HTMLURL,
		HeadSHA:    run.HeadSHA,
		HeadBranch: run.HeadBranch,
	}
}
