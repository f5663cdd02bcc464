package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/moolen/inquest/internal/kb"
	"github.com/moolen/inquest/internal/logging"
	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/provider"
	"github.com/moolen/inquest/internal/reasoning"
)

const (
	// deployBuffer widens the deploy/build query window on both sides: a
	// rollout started shortly before or after the alert window is still a
	// candidate cause.
	deployBuffer = 30 * time.Minute
	// changeLookback extends the change query window backwards: merged
	// changes land well before their effects show up.
	changeLookback = 6 * time.Hour
)

// ActionResult is the outcome of one planned action. Exactly one of Item and
// Err is meaningful: a failed action produces no evidence and the run
// continues.
type ActionResult struct {
	Action reasoning.PlannedAction
	Item   models.EvidenceItem
	Err    error
}

// Produced reports whether the action yielded an evidence item.
func (r ActionResult) Produced() bool { return r.Err == nil }

// Collector executes a plan against resolved capabilities. Actions run
// concurrently with bounded parallelism; each action writes to its own result
// slot and the results are merged after the join.
type Collector struct {
	registry *provider.Registry
	slice    *kb.Slice
	timeout  time.Duration
	parallel int
	logger   *logging.Logger
}

// NewCollector creates a collector for one run.
func NewCollector(registry *provider.Registry, slice *kb.Slice, timeout time.Duration, parallel int) *Collector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if parallel <= 0 {
		parallel = 4
	}
	return &Collector{
		registry: registry,
		slice:    slice,
		timeout:  timeout,
		parallel: parallel,
		logger:   logging.GetLogger("engine.collector"),
	}
}

// Collect executes all planned actions and returns one result per action, in
// plan order. Provider failures are captured in the result slot, never
// propagated.
func (c *Collector) Collect(ctx context.Context, incident models.Incident, actions []reasoning.PlannedAction) []ActionResult {
	results := make([]ActionResult, len(actions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallel)
	for i, action := range actions {
		g.Go(func() error {
			item, err := c.execute(gctx, incident, action)
			results[i] = ActionResult{Action: action, Item: item, Err: err}
			if err != nil {
				c.logger.Warn("action %s produced no evidence: %v", action.Capability, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Collector) execute(ctx context.Context, incident models.Incident, action reasoning.PlannedAction) (models.EvidenceItem, error) {
	capability, err := c.resolve(action.Capability)
	if err != nil {
		return models.EvidenceItem{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := provider.Target{
		Subject:     incident.Subject,
		Environment: incident.Environment,
		TimeRange:   windowFor(action.Capability, incident.TimeRange),
	}

	switch action.Capability {
	case provider.CategoryLogStore:
		store, ok := capability.(provider.LogStore)
		if !ok {
			return models.EvidenceItem{}, wrongInterfaceError(capability)
		}
		intent := provider.IntentSignatureCounts
		if s, _ := action.Arguments["intent"].(string); s == string(provider.IntentSamples) {
			intent = provider.IntentSamples
		}
		return store.Query(ctx, provider.LogQueryRequest{
			Target:          target,
			Intent:          intent,
			StreamSelectors: c.slice.Subject.LogEvidence.StreamSelectors,
			Parse:           c.slice.Subject.LogEvidence.Parse,
			Filters:         stringArgs(action.Arguments, "filters"),
		})

	case provider.CategoryRuntime:
		runtime, ok := capability.(provider.Runtime)
		if !ok {
			return models.EvidenceItem{}, wrongInterfaceError(capability)
		}
		if op, _ := action.Arguments["operation"].(string); op == "events" {
			return runtime.Events(ctx, provider.EventQueryRequest{Target: target})
		}
		return runtime.PodLogs(ctx, provider.RuntimeLogQueryRequest{Target: target})

	case provider.CategoryDeployTracker:
		tracker, ok := capability.(provider.DeployTracker)
		if !ok {
			return models.EvidenceItem{}, wrongInterfaceError(capability)
		}
		return tracker.ListDeployments(ctx, provider.DeployQueryRequest{Target: target})

	case provider.CategoryBuildTracker:
		tracker, ok := capability.(provider.BuildTracker)
		if !ok {
			return models.EvidenceItem{}, wrongInterfaceError(capability)
		}
		return tracker.ListBuilds(ctx, provider.BuildQueryRequest{Target: target})

	case provider.CategoryVCS:
		vcs, ok := capability.(provider.VCS)
		if !ok {
			return models.EvidenceItem{}, wrongInterfaceError(capability)
		}
		return vcs.ListChanges(ctx, provider.ChangeQueryRequest{Target: target, IncludePRs: true})

	case provider.CategoryMetricsStore:
		store, ok := capability.(provider.MetricsStore)
		if !ok {
			return models.EvidenceItem{}, wrongInterfaceError(capability)
		}
		query, _ := action.Arguments["query"].(string)
		if query == "" {
			query = defaultMetricsQuery(incident.Subject)
		}
		return store.QueryRange(ctx, provider.MetricsQueryRequest{Target: target, Query: query})

	case provider.CategoryTraceStore:
		store, ok := capability.(provider.TraceStore)
		if !ok {
			return models.EvidenceItem{}, wrongInterfaceError(capability)
		}
		service, _ := action.Arguments["service"].(string)
		return store.SearchTraces(ctx, provider.TraceQueryRequest{Target: target, ServiceName: service})

	case provider.CategoryAlerting:
		alerting, ok := capability.(provider.Alerting)
		if !ok {
			return models.EvidenceItem{}, wrongInterfaceError(capability)
		}
		return alerting.ActiveAlerts(ctx, provider.AlertQueryRequest{Target: target})

	default:
		return models.EvidenceItem{}, fmt.Errorf("unsupported capability %q", action.Capability)
	}
}

func (c *Collector) resolve(category provider.Category) (provider.Capability, error) {
	bindingID := c.slice.Binding(string(category))
	if bindingID == "" {
		return nil, fmt.Errorf("capability %q is not bound for subject %q", category, c.slice.Subject.Name)
	}
	return c.registry.Resolve(bindingID)
}

// Enrich performs the bounded secondary pass: when a deployment or build item
// exposes reference ids and no metadata item exists yet for that kind, fetch
// metadata for the first reference only. The single-reference cap prevents
// fan-out from ambiguous upstream data.
func (c *Collector) Enrich(ctx context.Context, state *State) []ActionResult {
	var results []ActionResult

	type enrichment struct {
		kind      models.EvidenceKind
		category  provider.Category
		signalKey string
	}
	for _, e := range []enrichment{
		{models.KindDeployment, provider.CategoryDeployTracker, "deployment_refs"},
		{models.KindBuild, provider.CategoryBuildTracker, "build_refs"},
	} {
		ref := firstUnenrichedRef(state, e.kind, e.signalKey)
		if ref == "" {
			continue
		}

		item, err := c.fetchMetadata(ctx, e.category, ref)
		results = append(results, ActionResult{
			Action: reasoning.PlannedAction{Capability: e.category, Arguments: map[string]any{"ref": ref}},
			Item:   item,
			Err:    err,
		})
		if err != nil {
			c.logger.Warn("metadata lookup for %s failed: %v", ref, err)
		}
	}
	return results
}

func (c *Collector) fetchMetadata(ctx context.Context, category provider.Category, ref string) (models.EvidenceItem, error) {
	capability, err := c.resolve(category)
	if err != nil {
		return models.EvidenceItem{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	switch category {
	case provider.CategoryDeployTracker:
		tracker, ok := capability.(provider.DeployTracker)
		if !ok {
			return models.EvidenceItem{}, wrongInterfaceError(capability)
		}
		return tracker.DeploymentMetadata(ctx, ref)
	case provider.CategoryBuildTracker:
		tracker, ok := capability.(provider.BuildTracker)
		if !ok {
			return models.EvidenceItem{}, wrongInterfaceError(capability)
		}
		return tracker.BuildMetadata(ctx, ref)
	default:
		return models.EvidenceItem{}, fmt.Errorf("capability %q has no metadata operation", category)
	}
}

// firstUnenrichedRef returns the first reference of the given kind when no
// metadata item for that kind exists yet.
func firstUnenrichedRef(state *State, kind models.EvidenceKind, signalKey string) string {
	for _, e := range state.Evidence {
		if e.Kind == kind && e.HasTag("metadata") {
			return ""
		}
	}
	for _, e := range state.Evidence {
		if e.Kind != kind {
			continue
		}
		if refs := stringSlice(e.TopSignals[signalKey]); len(refs) > 0 {
			return refs[0]
		}
	}
	return ""
}

func windowFor(category provider.Category, tr models.TimeRange) models.TimeRange {
	switch category {
	case provider.CategoryDeployTracker, provider.CategoryBuildTracker:
		return tr.Pad(deployBuffer, deployBuffer)
	case provider.CategoryVCS:
		return tr.Pad(changeLookback, 0)
	default:
		return tr
	}
}

func defaultMetricsQuery(subject string) string {
	return fmt.Sprintf(`sum(rate(http_requests_total{job=%q,code=~"5.."}[5m]))`, subject)
}

func wrongInterfaceError(c provider.Capability) error {
	return fmt.Errorf("provider %q does not implement the %s capability interface", c.ID(), c.Category())
}

func stringArgs(args map[string]any, key string) map[string]string {
	out := make(map[string]string)
	if raw, ok := args[key].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	}
	return out
}

func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		var out []string
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
