// Package kuberuntime implements the cluster runtime capability using the
// Kubernetes API: workload logs and events for the subject's namespace.
package kuberuntime

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/moolen/inquest/internal/logging"
	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/provider"
)

// Register adds the kubernetes runtime factory to the table.
func Register(table *provider.Table) error {
	return table.Register(provider.CategoryRuntime, "kubernetes", New)
}

// Runtime collects pod logs and events through the Kubernetes API.
type Runtime struct {
	id     string
	client kubernetes.Interface
	logger *logging.Logger

	namespaceMap map[string]string
	selectorMap  map[string]string
	containerMap map[string]string
}

// New constructs a Runtime from knowledge-base provider config.
// Config keys: kubeconfig_env (optional, falls back to in-cluster config),
// namespace_map, selector_map, container_map.
//
// The API client is built eagerly but performs no requests until the first
// capability invocation.
func New(id string, config map[string]any) (provider.Capability, error) {
	restCfg, err := buildRESTConfig(config)
	if err != nil {
		return nil, err
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	return &Runtime{
		id:           id,
		client:       clientset,
		logger:       logging.GetLogger("provider.kuberuntime." + id),
		namespaceMap: stringMap(config, "namespace_map"),
		selectorMap:  stringMap(config, "selector_map"),
		containerMap: stringMap(config, "container_map"),
	}, nil
}

func buildRESTConfig(config map[string]any) (*rest.Config, error) {
	if kubeconfigEnv, _ := config["kubeconfig_env"].(string); kubeconfigEnv != "" {
		path := os.Getenv(kubeconfigEnv)
		if path == "" {
			return nil, fmt.Errorf("environment variable %q is not set", kubeconfigEnv)
		}
		cfg, err := clientcmd.BuildConfigFromFlags("", path)
		if err != nil {
			return nil, fmt.Errorf("failed to load kubeconfig from %q: %w", path, err)
		}
		return cfg, nil
	}

	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load in-cluster config: %w", err)
	}
	return cfg, nil
}

func stringMap(config map[string]any, key string) map[string]string {
	out := make(map[string]string)
	if raw, ok := config[key].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	}
	return out
}

// ID implements provider.Capability.
func (r *Runtime) ID() string { return r.id }

// Category implements provider.Capability.
func (r *Runtime) Category() provider.Category { return provider.CategoryRuntime }

// PodLogs implements provider.Runtime. Pods are selected by the subject's
// label selector; logs are bounded by the window start and the tail limit.
func (r *Runtime) PodLogs(ctx context.Context, req provider.RuntimeLogQueryRequest) (models.EvidenceItem, error) {
	ns := req.Namespace
	if ns == "" {
		ns = r.namespaceMap[req.Subject]
	}
	selector := req.Selector
	if selector == "" {
		selector = r.selectorMap[req.Subject]
	}
	container := req.Container
	if container == "" {
		container = r.containerMap[req.Subject]
	}
	limit := int64(req.Limit)
	if limit <= 0 {
		limit = 200
	}

	query := fmt.Sprintf("pod_logs(ns=%s, selector=%s)", ns, selector)
	if ns == "" || selector == "" {
		// Nothing to query for this subject. Surface the gap as evidence
		// instead of failing the action.
		return models.EvidenceItem{
			ID:         models.EvidenceID("k8s_logs_missing", req.Subject, req.TimeRange),
			Kind:       models.KindLog,
			Source:     r.id,
			TimeRange:  req.TimeRange,
			Query:      query,
			Summary:    "Skipped workload logs: missing namespace or selector for subject.",
			TopSignals: map[string]any{"namespace": ns, "selector": selector},
			Tags:       []string{"k8s", "logs", "skipped"},
		}, nil
	}

	pods, err := r.client.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return models.EvidenceItem{}, fmt.Errorf("failed to list pods: %w", err)
	}

	since := metav1.NewTime(req.TimeRange.Start)
	var lines []string
	for _, pod := range pods.Items {
		if int64(len(lines)) >= limit {
			break
		}
		remaining := limit - int64(len(lines))
		opts := &corev1.PodLogOptions{
			SinceTime: &since,
			TailLines: &remaining,
		}
		if container != "" {
			opts.Container = container
		}

		stream, err := r.client.CoreV1().Pods(ns).GetLogs(pod.Name, opts).Stream(ctx)
		if err != nil {
			r.logger.Warn("failed to stream logs for pod %s: %v", pod.Name, err)
			continue
		}
		scanner := bufio.NewScanner(stream)
		for scanner.Scan() && int64(len(lines)) < limit {
			if line := scanner.Text(); line != "" {
				lines = append(lines, line)
			}
		}
		_ = stream.Close()
	}

	return models.EvidenceItem{
		ID:         models.EvidenceID("k8s_logs", selector, req.TimeRange),
		Kind:       models.KindLog,
		Source:     r.id,
		TimeRange:  req.TimeRange,
		Query:      query,
		Summary:    fmt.Sprintf("Collected %d workload log lines for the time window.", len(lines)),
		Samples:    lines,
		TopSignals: map[string]any{"namespace": ns, "selector": selector, "container": container},
		Tags:       []string{"k8s", "logs"},
	}, nil
}

// Events implements provider.Runtime. Events are filtered to the incident
// window and aggregated by reason and type.
func (r *Runtime) Events(ctx context.Context, req provider.EventQueryRequest) (models.EvidenceItem, error) {
	ns := req.Namespace
	if ns == "" {
		ns = r.namespaceMap[req.Subject]
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 200
	}

	if ns == "" {
		return models.EvidenceItem{
			ID:        models.EvidenceID("k8s_events_missing", req.Subject, req.TimeRange),
			Kind:      models.KindEvent,
			Source:    r.id,
			TimeRange: req.TimeRange,
			Query:     "events (missing namespace)",
			Summary:   "Skipped workload events: missing namespace for subject.",
			Tags:      []string{"k8s", "events", "skipped"},
		}, nil
	}

	events, err := r.client.CoreV1().Events(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return models.EvidenceItem{}, fmt.Errorf("failed to list events: %w", err)
	}

	reasons := make(map[string]int)
	types := make(map[string]int)
	var samples []string
	matched := 0

	for i := range events.Items {
		ev := &events.Items[i]
		ts := eventTime(ev)
		if ts.IsZero() || ts.Time.Before(req.TimeRange.Start) || ts.Time.After(req.TimeRange.End) {
			continue
		}
		matched++
		if matched > limit {
			break
		}
		reasons[ev.Reason]++
		types[ev.Type]++
		if len(samples) < 20 {
			samples = append(samples, fmt.Sprintf("%s %s %s/%s: %s",
				ev.Type, ev.Reason, ev.InvolvedObject.Kind, ev.InvolvedObject.Name, ev.Message))
		}
	}

	query := fmt.Sprintf("events(ns=%s)", ns)
	return models.EvidenceItem{
		ID:        models.EvidenceID("k8s_events", query, req.TimeRange),
		Kind:      models.KindEvent,
		Source:    r.id,
		TimeRange: req.TimeRange,
		Query:     query,
		Summary:   fmt.Sprintf("Found %d workload events in the time window.", matched),
		Samples:   samples,
		TopSignals: map[string]any{
			"reasons": sortedCounts(reasons),
			"types":   sortedCounts(types),
			"count":   matched,
		},
		Tags: []string{"k8s", "events"},
	}, nil
}

func eventTime(ev *corev1.Event) (ts metav1.Time) {
	if !ev.EventTime.IsZero() {
		return metav1.NewTime(ev.EventTime.Time)
	}
	if !ev.LastTimestamp.IsZero() {
		return ev.LastTimestamp
	}
	return ev.FirstTimestamp
}

// ReasonCount is one aggregated event reason/type with its occurrence count.
type ReasonCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func sortedCounts(counts map[string]int) []ReasonCount {
	out := make([]ReasonCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, ReasonCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
