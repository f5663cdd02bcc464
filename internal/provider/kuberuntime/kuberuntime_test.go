package kuberuntime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/moolen/inquest/internal/logging"
	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/provider"
)

func testRuntime() *Runtime {
	return &Runtime{
		id:           "k8s",
		logger:       logging.GetLogger("test"),
		namespaceMap: map[string]string{"checkout": "shop"},
		selectorMap:  map[string]string{"checkout": "app=checkout"},
		containerMap: map[string]string{},
	}
}

func window() models.TimeRange {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return models.TimeRange{Start: start, End: start.Add(time.Hour)}
}

func TestEventsAggregatesReasonsInWindow(t *testing.T) {
	tr := window()
	mk := func(name, reason, typ string, at time.Time) *corev1.Event {
		return &corev1.Event{
			ObjectMeta:    metav1.ObjectMeta{Name: name, Namespace: "shop"},
			Reason:        reason,
			Type:          typ,
			Message:       "msg",
			LastTimestamp: metav1.NewTime(at),
			InvolvedObject: corev1.ObjectReference{
				Kind: "Pod",
				Name: "checkout-0",
			},
		}
	}

	clientset := fake.NewSimpleClientset(
		mk("e1", "BackOff", "Warning", tr.Start.Add(5*time.Minute)),
		mk("e2", "BackOff", "Warning", tr.Start.Add(10*time.Minute)),
		mk("e3", "Scheduled", "Normal", tr.Start.Add(15*time.Minute)),
		mk("e4", "OOMKilling", "Warning", tr.Start.Add(-2*time.Hour)),
	)

	rt := testRuntime()
	rt.client = clientset

	item, err := rt.Events(context.Background(), provider.EventQueryRequest{
		Target: provider.Target{Subject: "checkout", TimeRange: tr},
	})
	require.NoError(t, err)

	assert.Equal(t, models.KindEvent, item.Kind)
	assert.Equal(t, 3, item.TopSignals["count"])

	reasons, ok := item.TopSignals["reasons"].([]ReasonCount)
	require.True(t, ok)
	require.Len(t, reasons, 2)
	// BackOff occurred twice, so it sorts first.
	assert.Equal(t, ReasonCount{Name: "BackOff", Count: 2}, reasons[0])
	assert.Equal(t, ReasonCount{Name: "Scheduled", Count: 1}, reasons[1])

	types, ok := item.TopSignals["types"].([]ReasonCount)
	require.True(t, ok)
	assert.Equal(t, ReasonCount{Name: "Warning", Count: 2}, types[0])
}

func TestEventsMissingNamespaceIsSkippedNotFailed(t *testing.T) {
	rt := testRuntime()
	rt.client = fake.NewSimpleClientset()

	item, err := rt.Events(context.Background(), provider.EventQueryRequest{
		Target: provider.Target{Subject: "unmapped", TimeRange: window()},
	})
	require.NoError(t, err)
	assert.Contains(t, item.Tags, "skipped")
	assert.Contains(t, item.Summary, "missing namespace")
}

func TestPodLogsCollectsFromSelectedPods(t *testing.T) {
	clientset := fake.NewSimpleClientset(&corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "checkout-0",
			Namespace: "shop",
			Labels:    map[string]string{"app": "checkout"},
		},
	})

	rt := testRuntime()
	rt.client = clientset

	item, err := rt.PodLogs(context.Background(), provider.RuntimeLogQueryRequest{
		Target: provider.Target{Subject: "checkout", TimeRange: window()},
	})
	require.NoError(t, err)

	assert.Equal(t, models.KindLog, item.Kind)
	// The fake clientset streams a fixed body for pod logs.
	assert.NotEmpty(t, item.Samples)
	assert.Equal(t, "shop", item.TopSignals["namespace"])
	assert.Equal(t, "app=checkout", item.TopSignals["selector"])
}

func TestPodLogsMissingSelectorIsSkipped(t *testing.T) {
	rt := testRuntime()
	rt.client = fake.NewSimpleClientset()

	item, err := rt.PodLogs(context.Background(), provider.RuntimeLogQueryRequest{
		Target: provider.Target{Subject: "unmapped", TimeRange: window()},
	})
	require.NoError(t, err)
	assert.Contains(t, item.Tags, "skipped")
}

func TestSortedCountsTieBreaksByName(t *testing.T) {
	got := sortedCounts(map[string]int{"b": 1, "a": 1, "c": 2})
	assert.Equal(t, []ReasonCount{{"c", 2}, {"a", 1}, {"b", 1}}, got)
}
