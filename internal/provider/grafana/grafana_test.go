package grafana

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

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New("alerts", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestActiveAlerts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, defaultAlertsPath, r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		assert.Equal(t, []string{"service=checkout"}, r.URL.Query()["filter"])

		alerts := []map[string]any{
			{
				"labels":   map[string]string{"alertname": "HighErrorRate", "severity": "critical"},
				"startsAt": "2025-03-01T10:00:00Z",
				"status":   map[string]string{"state": "active"},
			},
			{
				"labels":   map[string]string{"alertname": "PodRestarts", "severity": "warning"},
				"startsAt": "2025-03-01T10:05:00Z",
				"status":   map[string]string{"state": "active"},
			},
			{
				"labels":   map[string]string{"alertname": "DiskFull"},
				"startsAt": "2025-03-01T09:00:00Z",
				"status":   map[string]string{"state": "suppressed"},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(alerts))
	}))
	defer server.Close()

	cap, err := New("alerts", map[string]any{"base_url": server.URL})
	require.NoError(t, err)
	alerting := cap.(*Alerting)

	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	item, err := alerting.ActiveAlerts(context.Background(), provider.AlertQueryRequest{
		Target:       provider.Target{Subject: "checkout", TimeRange: models.TimeRange{Start: start, End: start.Add(time.Hour)}},
		LabelFilters: []string{"service=checkout"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.KindAlert, item.Kind)
	assert.Equal(t, 3, item.TopSignals["count"])
	assert.Equal(t, map[string]int{"critical": 1, "warning": 1, "unknown": 1}, item.TopSignals["by_severity"])
	assert.Equal(t, map[string]int{"active": 2, "suppressed": 1}, item.TopSignals["by_state"])
	require.Len(t, item.Samples, 3)
	assert.Contains(t, item.Samples[0], "HighErrorRate")
}

func TestActiveAlertsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alerts []map[string]any
		for i := 0; i < 5; i++ {
			alerts = append(alerts, map[string]any{
				"labels":   map[string]string{"alertname": "A", "severity": "warning"},
				"startsAt": "2025-03-01T10:00:00Z",
				"status":   map[string]string{"state": "active"},
			})
		}
		require.NoError(t, json.NewEncoder(w).Encode(alerts))
	}))
	defer server.Close()

	cap, err := New("alerts", map[string]any{"base_url": server.URL})
	require.NoError(t, err)

	item, err := cap.(*Alerting).ActiveAlerts(context.Background(), provider.AlertQueryRequest{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, item.TopSignals["count"])
}

func TestActiveAlertsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	cap, err := New("alerts", map[string]any{"base_url": server.URL})
	require.NoError(t, err)

	_, err = cap.(*Alerting).ActiveAlerts(context.Background(), provider.AlertQueryRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
