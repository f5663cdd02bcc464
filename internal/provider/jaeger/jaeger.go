// Package jaeger implements the trace store capability against a
// Jaeger-compatible query API.
package jaeger

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

// Register adds the jaeger factory to the table.
func Register(table *provider.Table) error {
	return table.Register(provider.CategoryTraceStore, "jaeger", New)
}

// Store searches traces in a Jaeger-compatible backend.
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
		return nil, fmt.Errorf("jaeger provider requires 'base_url' in config")
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
func (s *Store) Category() provider.Category { return provider.CategoryTraceStore }

// SearchTraces implements provider.TraceStore. The service searched defaults
// to the incident subject when no explicit service name is requested.
func (s *Store) SearchTraces(ctx context.Context, req provider.TraceQueryRequest) (models.EvidenceItem, error) {
	service := req.ServiceName
	if service == "" {
		service = req.Subject
	}
	limit := req.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	params := url.Values{}
	params.Set("service", service)
	params.Set("start", strconv.FormatInt(req.TimeRange.Start.UnixMicro(), 10))
	params.Set("end", strconv.FormatInt(req.TimeRange.End.UnixMicro(), 10))
	params.Set("limit", strconv.Itoa(limit))

	endpoint := s.baseURL + "/api/traces?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.EvidenceItem{}, fmt.Errorf("failed to build trace search request: %w", err)
	}
	if s.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return models.EvidenceItem{}, fmt.Errorf("trace store search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.EvidenceItem{}, fmt.Errorf("trace store search returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Data []struct {
			TraceID string `json:"traceID"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return models.EvidenceItem{}, fmt.Errorf("failed to decode trace response: %w", err)
	}

	traceIDs := make([]string, 0, len(parsed.Data))
	for _, t := range parsed.Data {
		if t.TraceID != "" {
			traceIDs = append(traceIDs, t.TraceID)
		}
	}

	samples := traceIDs
	if len(samples) > 10 {
		samples = samples[:10]
	}

	query := fmt.Sprintf("traces(service=%s)", service)
	return models.EvidenceItem{
		ID:         models.EvidenceID("traces", query, req.TimeRange),
		Kind:       models.KindTrace,
		Source:     s.id,
		TimeRange:  req.TimeRange,
		Query:      query,
		Summary:    fmt.Sprintf("Found %d traces in the time window.", len(traceIDs)),
		Samples:    samples,
		TopSignals: map[string]any{"trace_ids": traceIDs},
		Tags:       []string{"trace"},
	}, nil
}
