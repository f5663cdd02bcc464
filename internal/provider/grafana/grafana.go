// Package grafana implements the alerting capability against a Grafana
// instance's embedded Alertmanager API.
package grafana

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/moolen/inquest/internal/logging"
	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/provider"
)

const (
	defaultTimeout    = 20 * time.Second
	defaultAlertsPath = "/api/alertmanager/grafana/api/v2/alerts"
)

// Register adds the grafana alerting factory to the table.
func Register(table *provider.Table) error {
	return table.Register(provider.CategoryAlerting, "grafana", New)
}

// Alerting lists currently firing alerts from Grafana's Alertmanager API.
type Alerting struct {
	id         string
	baseURL    string
	alertsPath string
	token      string
	client     *http.Client
	logger     *logging.Logger
}

// New constructs an Alerting provider from knowledge-base provider config.
// Config keys: base_url (required), token_env (optional), alerts_path
// (optional, defaults to the Grafana-managed Alertmanager endpoint).
func New(id string, config map[string]any) (provider.Capability, error) {
	baseURL, _ := config["base_url"].(string)
	if baseURL == "" {
		return nil, fmt.Errorf("grafana provider requires 'base_url' in config")
	}

	alertsPath, _ := config["alerts_path"].(string)
	if alertsPath == "" {
		alertsPath = defaultAlertsPath
	}

	var token string
	if tokenEnv, _ := config["token_env"].(string); tokenEnv != "" {
		token = os.Getenv(tokenEnv)
		if token == "" {
			return nil, fmt.Errorf("environment variable %q is not set", tokenEnv)
		}
	}

	return &Alerting{
		id:         id,
		baseURL:    strings.TrimRight(baseURL, "/"),
		alertsPath: alertsPath,
		token:      token,
		client:     &http.Client{Timeout: defaultTimeout},
		logger:     logging.GetLogger("provider.grafana." + id),
	}, nil
}

// ID implements provider.Capability.
func (a *Alerting) ID() string { return a.id }

// Category implements provider.Capability.
func (a *Alerting) Category() provider.Category { return provider.CategoryAlerting }

// alert is the Alertmanager v2 alert shape, reduced to what we report on.
type alert struct {
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    time.Time         `json:"startsAt"`
	Status      struct {
		State string `json:"state"`
	} `json:"status"`
}

// ActiveAlerts implements provider.Alerting. Label filters use Alertmanager
// "name=value" filter syntax and are applied server-side.
func (a *Alerting) ActiveAlerts(ctx context.Context, req provider.AlertQueryRequest) (models.EvidenceItem, error) {
	params := url.Values{}
	params.Set("active", "true")
	for _, f := range req.LabelFilters {
		params.Add("filter", f)
	}

	endpoint := a.baseURL + a.alertsPath + "?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.EvidenceItem{}, fmt.Errorf("failed to build alert query request: %w", err)
	}
	if a.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		a.logger.Warn("alert query failed: %s: %v", endpoint, err)
		return models.EvidenceItem{}, fmt.Errorf("alert query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.logger.Warn("alert query %s returned status %d", endpoint, resp.StatusCode)
		return models.EvidenceItem{}, fmt.Errorf("alert query returned status %d", resp.StatusCode)
	}

	var alerts []alert
	if err := json.NewDecoder(resp.Body).Decode(&alerts); err != nil {
		return models.EvidenceItem{}, fmt.Errorf("failed to decode alert response: %w", err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(alerts) > limit {
		alerts = alerts[:limit]
	}

	bySeverity := make(map[string]int)
	byState := make(map[string]int)
	var samples []string
	for _, al := range alerts {
		severity := al.Labels["severity"]
		if severity == "" {
			severity = "unknown"
		}
		bySeverity[severity]++
		byState[al.Status.State]++
		if len(samples) < 10 {
			name := al.Labels["alertname"]
			if name == "" {
				name = "(unnamed)"
			}
			samples = append(samples, fmt.Sprintf("%s severity=%s since %s",
				name, severity, al.StartsAt.Format(time.RFC3339)))
		}
	}

	query := "active_alerts"
	if len(req.LabelFilters) > 0 {
		sorted := append([]string(nil), req.LabelFilters...)
		sort.Strings(sorted)
		query += ":" + strings.Join(sorted, ",")
	}

	return models.EvidenceItem{
		ID:        models.EvidenceID("alerts", query, req.TimeRange),
		Kind:      models.KindAlert,
		Source:    a.id,
		TimeRange: req.TimeRange,
		Query:     query,
		Summary:   fmt.Sprintf("Found %d active alerts.", len(alerts)),
		Samples:   samples,
		TopSignals: map[string]any{
			"by_severity": bySeverity,
			"by_state":    byState,
			"count":       len(alerts),
		},
		Tags: []string{"alerts"},
	}, nil
}
