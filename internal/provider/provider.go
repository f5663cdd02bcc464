// Package provider defines the capability contracts implemented by evidence
// sources, and the registry that resolves knowledge-base bindings to concrete
// provider instances.
//
// Each capability method takes a request object and returns exactly one
// evidence item, or an error. Providers perform no I/O at construction time;
// network calls happen only at capability invocation.
package provider

import (
	"context"

	"github.com/moolen/inquest/internal/models"
)

// Category is the capability category a provider implements.
type Category string

const (
	CategoryLogStore     Category = "log_store"
	CategoryDeployTracker Category = "deploy_tracker"
	CategoryVCS          Category = "vcs"
	CategoryBuildTracker Category = "build_tracker"
	CategoryMetricsStore Category = "metrics_store"
	CategoryTraceStore   Category = "trace_store"
	CategoryRuntime      Category = "runtime"
	CategoryAlerting     Category = "alerting"
)

// Categories lists all capability categories in the order the fallback
// planner considers them.
var Categories = []Category{
	CategoryLogStore,
	CategoryRuntime,
	CategoryDeployTracker,
	CategoryBuildTracker,
	CategoryVCS,
	CategoryMetricsStore,
	CategoryTraceStore,
	CategoryAlerting,
}

// ExpectedKind maps a capability category to the evidence kind its primary
// operation produces. Used to compute which kinds are still missing.
func (c Category) ExpectedKind() models.EvidenceKind {
	switch c {
	case CategoryLogStore:
		return models.KindLog
	case CategoryRuntime:
		return models.KindEvent
	case CategoryDeployTracker:
		return models.KindDeployment
	case CategoryBuildTracker:
		return models.KindBuild
	case CategoryVCS:
		return models.KindChange
	case CategoryMetricsStore:
		return models.KindMetric
	case CategoryTraceStore:
		return models.KindTrace
	case CategoryAlerting:
		return models.KindAlert
	default:
		return models.KindOther
	}
}

// Capability is the marker interface all provider instances implement.
// Callers type-assert to the concrete capability interface for their
// category.
type Capability interface {
	// ID returns the provider instance id from the knowledge base.
	ID() string
	// Category returns the capability category this instance serves.
	Category() Category
}

// Target identifies what a capability request is about.
type Target struct {
	Subject     string
	Environment string
	TimeRange   models.TimeRange
}

// LogIntent selects between the two log query shapes.
type LogIntent string

const (
	// IntentSignatureCounts asks for aggregated error signature counts.
	IntentSignatureCounts LogIntent = "signature_counts"
	// IntentSamples asks for raw log lines.
	IntentSamples LogIntent = "samples"
)

// LogQueryRequest asks a log store for either signature counts or samples.
type LogQueryRequest struct {
	Target
	Intent          LogIntent
	StreamSelectors map[string]string
	Parse           map[string]any
	Filters         map[string]string
	Limit           int
}

// DeployQueryRequest asks a deploy tracker for deployments in a window.
type DeployQueryRequest struct {
	Target
	Limit int
}

// ChangeQueryRequest asks a VCS for merged changes in a window.
type ChangeQueryRequest struct {
	Target
	IncludePRs     bool
	IncludeCommits bool
	Limit          int
}

// BuildQueryRequest asks a build tracker for builds in a window.
type BuildQueryRequest struct {
	Target
	Limit int
}

// MetricsQueryRequest asks a metrics store for a range query.
type MetricsQueryRequest struct {
	Target
	Query       string
	StepSeconds int
	Limit       int
}

// TraceQueryRequest asks a trace store for traces in a window.
type TraceQueryRequest struct {
	Target
	ServiceName string
	Limit       int
}

// RuntimeLogQueryRequest asks the cluster runtime for workload logs.
type RuntimeLogQueryRequest struct {
	Target
	Namespace string
	Selector  string
	Container string
	Limit     int
}

// EventQueryRequest asks the cluster runtime for workload events.
type EventQueryRequest struct {
	Target
	Namespace string
	Selector  string
	Limit     int
}

// AlertQueryRequest asks the alerting system for active alerts.
type AlertQueryRequest struct {
	Target
	LabelFilters []string
	Limit        int
}

// LogStore queries a log backend.
type LogStore interface {
	Capability
	Query(ctx context.Context, req LogQueryRequest) (models.EvidenceItem, error)
}

// DeployTracker lists deployments and fetches per-deployment metadata.
type DeployTracker interface {
	Capability
	ListDeployments(ctx context.Context, req DeployQueryRequest) (models.EvidenceItem, error)
	DeploymentMetadata(ctx context.Context, ref string) (models.EvidenceItem, error)
}

// VCS lists merged changes.
type VCS interface {
	Capability
	ListChanges(ctx context.Context, req ChangeQueryRequest) (models.EvidenceItem, error)
}

// BuildTracker lists builds and fetches per-build metadata.
type BuildTracker interface {
	Capability
	ListBuilds(ctx context.Context, req BuildQueryRequest) (models.EvidenceItem, error)
	BuildMetadata(ctx context.Context, ref string) (models.EvidenceItem, error)
}

// MetricsStore runs range queries against a metrics backend.
type MetricsStore interface {
	Capability
	QueryRange(ctx context.Context, req MetricsQueryRequest) (models.EvidenceItem, error)
}

// TraceStore searches traces.
type TraceStore interface {
	Capability
	SearchTraces(ctx context.Context, req TraceQueryRequest) (models.EvidenceItem, error)
}

// Runtime collects logs and events from the cluster running the subject.
type Runtime interface {
	Capability
	PodLogs(ctx context.Context, req RuntimeLogQueryRequest) (models.EvidenceItem, error)
	Events(ctx context.Context, req EventQueryRequest) (models.EvidenceItem, error)
}

// Alerting lists active alerts.
type Alerting interface {
	Capability
	ActiveAlerts(ctx context.Context, req AlertQueryRequest) (models.EvidenceItem, error)
}
