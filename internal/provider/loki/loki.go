// Package loki implements the log store capability against a Loki-compatible
// query API.
package loki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/moolen/inquest/internal/logging"
	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/provider"
)

const defaultTimeout = 20 * time.Second

// Register adds the loki factory to the table.
func Register(table *provider.Table) error {
	return table.Register(provider.CategoryLogStore, "loki", New)
}

// Store queries a Loki-compatible backend.
type Store struct {
	id      string
	baseURL string
	token   string
	client  *http.Client
	logger  *logging.Logger
}

// New constructs a Store from knowledge-base provider config.
// Config keys: base_url (required), token_env (optional bearer token env var).
func New(id string, config map[string]any) (provider.Capability, error) {
	baseURL, _ := config["base_url"].(string)
	if baseURL == "" {
		return nil, fmt.Errorf("loki provider requires 'base_url' in config")
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
		logger:  logging.GetLogger("provider.loki." + id),
	}, nil
}

// ID implements provider.Capability.
func (s *Store) ID() string { return s.id }

// Category implements provider.Capability.
func (s *Store) Category() provider.Category { return provider.CategoryLogStore }

// Query implements provider.LogStore. The intent selects between an
// aggregated signature-count query and a raw sample query; both produce one
// evidence item.
func (s *Store) Query(ctx context.Context, req provider.LogQueryRequest) (models.EvidenceItem, error) {
	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}

	var logql string
	if req.Intent == provider.IntentSignatureCounts {
		logql = s.buildSignatureQuery(req)
	} else {
		logql = s.buildSampleQuery(req)
	}

	s.logger.Debug("executing %s query: %s", req.Intent, logql)
	payload, err := s.queryRange(ctx, logql, req.TimeRange, limit)
	if err != nil {
		s.logger.Warn("log query failed: %s: %v", logql, err)
		return models.EvidenceItem{}, err
	}

	if req.Intent == provider.IntentSignatureCounts {
		sigs := extractSignatures(payload)
		return models.EvidenceItem{
			ID:         models.EvidenceID("logs_sigs", logql, req.TimeRange),
			Kind:       models.KindLog,
			Source:     s.id,
			TimeRange:  req.TimeRange,
			Query:      logql,
			Summary:    "Top error signatures computed over the time window.",
			TopSignals: map[string]any{"signatures": sigs},
			Tags:       []string{"logs", "signatures"},
		}, nil
	}

	lines := extractLines(payload, limit)
	return models.EvidenceItem{
		ID:        models.EvidenceID("logs_samples", logql, req.TimeRange),
		Kind:      models.KindLog,
		Source:    s.id,
		TimeRange: req.TimeRange,
		Query:     logql,
		Summary:   fmt.Sprintf("Collected %d log samples for the time window.", len(lines)),
		Samples:   lines,
		Tags:      []string{"logs", "samples"},
	}, nil
}

// buildSignatureQuery produces an aggregation over parsed error fields when
// the KB supplies JSON parse hints, and a generic volume topk otherwise.
func (s *Store) buildSignatureQuery(req provider.LogQueryRequest) string {
	selector := labelSelector(req.StreamSelectors)
	format, fields := parseHints(req.Parse)

	errMsg := fields["err_msg"]
	if format != "json" || errMsg == "" {
		return fmt.Sprintf("topk(10, sum(count_over_time(%s[5m])))", selector)
	}

	var stages []string
	if env := fields["env"]; env != "" {
		stages = append(stages, fmt.Sprintf("env=%q", env))
	}
	if errType := fields["err_type"]; errType != "" {
		stages = append(stages, fmt.Sprintf("err_type=%q", errType))
	}
	stages = append(stages, fmt.Sprintf("err_msg=%q", errMsg))

	query := selector + " | json " + strings.Join(stages, ", ")
	if req.Environment != "" && fields["env"] != "" {
		query += fmt.Sprintf(" | env=%q", req.Environment)
	}
	return fmt.Sprintf("topk(10, sum by (err_type, err_msg) (count_over_time(%s[5m])))", query)
}

func (s *Store) buildSampleQuery(req provider.LogQueryRequest) string {
	selector := labelSelector(req.StreamSelectors)
	format, fields := parseHints(req.Parse)
	if format != "json" {
		return selector
	}

	var stages []string
	for _, logical := range []string{"env", "version", "err_type", "err_msg", "route", "status", "trace_id"} {
		if path := fields[logical]; path != "" {
			stages = append(stages, fmt.Sprintf("%s=%q", logical, path))
		}
	}

	query := selector
	if len(stages) > 0 {
		query += " | json " + strings.Join(stages, ", ")
	}
	if req.Environment != "" && fields["env"] != "" {
		query += fmt.Sprintf(" | env=%q", req.Environment)
	}

	// Caller-supplied label filters, e.g. status=500.
	keys := make([]string, 0, len(req.Filters))
	for k := range req.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		query += fmt.Sprintf(" | %s=%q", k, req.Filters[k])
	}
	return query
}

func (s *Store) queryRange(ctx context.Context, logql string, tr models.TimeRange, limit int) (*rangeResponse, error) {
	params := url.Values{}
	params.Set("query", logql)
	params.Set("start", strconv.FormatInt(tr.Start.UnixNano(), 10))
	params.Set("end", strconv.FormatInt(tr.End.UnixNano(), 10))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("direction", "BACKWARD")

	endpoint := s.baseURL + "/loki/api/v1/query_range?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build log query request: %w", err)
	}
	if s.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("log store query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("log store query returned status %d", resp.StatusCode)
	}

	var parsed rangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode log store response: %w", err)
	}
	return &parsed, nil
}

type rangeResponse struct {
	Data struct {
		Result []struct {
			Metric map[string]string `json:"metric"`
			Stream map[string]string `json:"stream"`
			Values [][2]any          `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

// Signature is one aggregated error signature with its count over the window.
type Signature struct {
	ErrType string  `json:"err_type"`
	ErrMsg  string  `json:"err_msg"`
	Count   float64 `json:"count"`
}

func extractSignatures(payload *rangeResponse) []Signature {
	sigs := make([]Signature, 0, len(payload.Data.Result))
	for _, series := range payload.Data.Result {
		total := 0.0
		for _, pair := range series.Values {
			switch v := pair[1].(type) {
			case string:
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					total += f
				}
			case float64:
				total += v
			}
		}
		sigs = append(sigs, Signature{
			ErrType: series.Metric["err_type"],
			ErrMsg:  series.Metric["err_msg"],
			Count:   total,
		})
	}
	sort.SliceStable(sigs, func(i, j int) bool { return sigs[i].Count > sigs[j].Count })
	if len(sigs) > 10 {
		sigs = sigs[:10]
	}
	return sigs
}

func extractLines(payload *rangeResponse, limit int) []string {
	var lines []string
	for _, stream := range payload.Data.Result {
		for _, pair := range stream.Values {
			if line, ok := pair[1].(string); ok {
				lines = append(lines, line)
				if len(lines) >= limit {
					return lines
				}
			}
		}
	}
	return lines
}

func labelSelector(selectors map[string]string) string {
	if len(selectors) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(selectors))
	for k := range selectors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, selectors[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func parseHints(parse map[string]any) (format string, fields map[string]string) {
	format = "json"
	if f, ok := parse["format"].(string); ok && f != "" {
		format = f
	}
	fields = make(map[string]string)
	if raw, ok := parse["fields"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				fields[k] = s
			}
		}
	}
	return format, fields
}
