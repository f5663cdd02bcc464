package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/inquest/internal/engine"
	"github.com/moolen/inquest/internal/kb"
	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/provider"
	"github.com/moolen/inquest/internal/reasoning"
)

type cannedLogStore struct{ id string }

func (c *cannedLogStore) ID() string                  { return c.id }
func (c *cannedLogStore) Category() provider.Category { return provider.CategoryLogStore }
func (c *cannedLogStore) Query(_ context.Context, req provider.LogQueryRequest) (models.EvidenceItem, error) {
	return models.EvidenceItem{
		ID:         models.EvidenceID("logs_"+string(req.Intent), "canned", req.TimeRange),
		Kind:       models.KindLog,
		Source:     c.id,
		TimeRange:  req.TimeRange,
		Query:      "canned",
		Summary:    "canned",
		TopSignals: map[string]any{"signatures": []string{"x"}},
	}, nil
}

func testServer(t *testing.T) *Server {
	t.Helper()

	table := provider.NewTable()
	require.NoError(t, table.Register(provider.CategoryLogStore, "fake_logs",
		func(id string, _ map[string]any) (provider.Capability, error) {
			return &cannedLogStore{id: id}, nil
		}))

	knowledge := kb.NewHolder(&kb.KnowledgeBase{
		Subjects: []kb.Subject{{
			Name:        "checkout",
			Environment: "prod",
			Bindings:    map[string]string{"log_store": "logs"},
		}},
		Providers: []kb.ProviderInstance{
			{ID: "logs", Category: "log_store", Type: "fake_logs"},
		},
	})

	store, err := NewReportStore(8)
	require.NoError(t, err)

	eng := engine.New(table, reasoning.NewStubReasoner(), engine.DefaultConfig())
	return New(0, eng, knowledge, store)
}

func webhookBody(t *testing.T, labels map[string]string) *bytes.Buffer {
	t.Helper()
	payload := map[string]any{
		"labels":      labels,
		"annotations": map[string]any{"summary": "error spike"},
		"startsAt":    "2025-03-01T11:00:00Z",
		"endsAt":      "2025-03-01T11:30:00Z",
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return bytes.NewBuffer(raw)
}

func TestWebhookRunsInvestigationAndStoresReport(t *testing.T) {
	server := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		webhookBody(t, map[string]string{"service": "checkout", "env": "prod", "severity": "critical"}))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var report models.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEmpty(t, report.RunID)
	assert.NotEmpty(t, report.Evidence)

	// The report is retrievable afterwards.
	getReq := httptest.NewRequest(http.MethodGet, "/reports/"+report.RunID, nil)
	getRec := httptest.NewRecorder()
	server.Handler().ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)
}

func TestWebhookRejectsInvalidJSON(t *testing.T) {
	server := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookUnknownSubjectIs404(t *testing.T) {
	server := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/webhook",
		webhookBody(t, map[string]string{"service": "nope", "env": "prod"}))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookMissingSubjectIs400(t *testing.T) {
	server := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/webhook",
		webhookBody(t, map[string]string{"env": "prod"}))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	server := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetReportNotFound(t *testing.T) {
	server := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/reports/no-such-run", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	server := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReportStoreEvicts(t *testing.T) {
	store, err := NewReportStore(2)
	require.NoError(t, err)

	store.Put(&models.Report{RunID: "a"})
	store.Put(&models.Report{RunID: "b"})
	store.Put(&models.Report{RunID: "c"})

	assert.Equal(t, 2, store.Len())
	_, ok := store.Get("a")
	assert.False(t, ok)
	_, ok = store.Get("c")
	assert.True(t, ok)
}
