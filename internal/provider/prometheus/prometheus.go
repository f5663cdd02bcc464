// Package prometheus implements the metrics store capability against a
// Prometheus-compatible HTTP API.
package prometheus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/provider"
)

const defaultTimeout = 20 * time.Second

// Register adds the prometheus factory to the table.
func Register(table *provider.Table) error {
	return table.Register(provider.CategoryMetricsStore, "prometheus", New)
}

// Store runs range queries against a Prometheus-compatible backend.
type Store struct {
	id      string
	baseURL string
	token   string
	client  *http.Client
}

// New constructs a Store from knowledge-base provider config.
// Config keys: base_url (required), token_env (optional).
func New(id string, config map[string]any) (provider.Capability, error) {
	baseURL, _ := config["base_url"].(string)
	if baseURL == "" {
		return nil, fmt.Errorf("prometheus provider requires 'base_url' in config")
	}

	var token string
	if tokenEnv, _ := config["token_env"].(string); tokenEnv != "" {
		token = os.Getenv(tokenEnv)
		if token == "" {
			return nil, fmt.Errorf("environment variable %q is not set", tokenEnv)
		}
	}

	return &Store{
		id:      id,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: defaultTimeout},
	}, nil
}

// ID implements provider.Capability.
func (s *Store) ID() string { return s.id }

// Category implements provider.Capability.
func (s *Store) Category() provider.Category { return provider.CategoryMetricsStore }

// QueryRange implements provider.MetricsStore.
func (s *Store) QueryRange(ctx context.Context, req provider.MetricsQueryRequest) (models.EvidenceItem, error) {
	step := req.StepSeconds
	if step < 10 {
		step = 60
	}

	params := url.Values{}
	params.Set("query", req.Query)
	params.Set("start", strconv.FormatInt(req.TimeRange.Start.Unix(), 10))
	params.Set("end", strconv.FormatInt(req.TimeRange.End.Unix(), 10))
	params.Set("step", strconv.Itoa(step))

	endpoint := s.baseURL + "/api/v1/query_range?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.EvidenceItem{}, fmt.Errorf("failed to build metrics query request: %w", err)
	}
	if s.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return models.EvidenceItem{}, fmt.Errorf("metrics store query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.EvidenceItem{}, fmt.Errorf("metrics store query returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Data struct {
			Result []struct {
				Metric map[string]string `json:"metric"`
				Values [][2]any          `json:"values"`
			} `json:"result"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return models.EvidenceItem{}, fmt.Errorf("failed to decode metrics response: %w", err)
	}

	seriesCount := len(parsed.Data.Result)
	sampleCount := 0
	var samples []string
	for i, series := range parsed.Data.Result {
		sampleCount += len(series.Values)
		if i < 5 {
			preview := series.Values
			if len(preview) > 3 {
				preview = preview[:3]
			}
			samples = append(samples, fmt.Sprintf("%v -> %v", series.Metric, preview))
		}
	}

	return models.EvidenceItem{
		ID:        models.EvidenceID("metrics", req.Query, req.TimeRange),
		Kind:      models.KindMetric,
		Source:    s.id,
		TimeRange: req.TimeRange,
		Query:     req.Query,
		Summary:   fmt.Sprintf("Metrics query returned %d series and %d samples.", seriesCount, sampleCount),
		Samples:   samples,
		TopSignals: map[string]any{
			"series_count": seriesCount,
			"sample_count": sampleCount,
		},
		Tags: []string{"metrics"},
	}, nil
}
