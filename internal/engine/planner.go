package engine

import (
	"github.com/moolen/inquest/internal/kb"
	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/provider"
	"github.com/moolen/inquest/internal/reasoning"
)

// availableCapabilities derives the capability categories the knowledge slice
// actually binds, in the canonical category order.
func availableCapabilities(slice *kb.Slice) []provider.Category {
	var out []provider.Category
	for _, c := range provider.Categories {
		if slice.Binding(string(c)) != "" {
			out = append(out, c)
		}
	}
	return out
}

// missingKinds lists the evidence kinds whose capability is bound but whose
// kind has not yet appeared in the collected evidence.
func missingKinds(state *State, available []provider.Category) []models.EvidenceKind {
	var out []models.EvidenceKind
	for _, c := range available {
		if kind := c.ExpectedKind(); !state.HasKind(kind) {
			out = append(out, kind)
		}
	}
	return out
}

// fallbackPlan is the deterministic rule-based plan used when the reasoning
// service returns nothing usable. The order follows a human runbook: logs
// first (signature counts plus raw samples), then cluster logs and events,
// then deployments, builds, changes, metrics, traces. Each capability is
// planned only when it is bound and its evidence kind is still missing.
func fallbackPlan(state *State, available []provider.Category) []reasoning.PlannedAction {
	bound := make(map[provider.Category]bool, len(available))
	for _, c := range available {
		bound[c] = true
	}

	var plan []reasoning.PlannedAction
	add := func(c provider.Category, args map[string]any) {
		if bound[c] && !state.HasKind(c.ExpectedKind()) {
			plan = append(plan, reasoning.PlannedAction{Capability: c, Arguments: args})
		}
	}

	add(provider.CategoryLogStore, map[string]any{"intent": string(provider.IntentSignatureCounts)})
	add(provider.CategoryLogStore, map[string]any{"intent": string(provider.IntentSamples)})
	if bound[provider.CategoryRuntime] && !state.HasKind(models.KindEvent) {
		plan = append(plan,
			reasoning.PlannedAction{Capability: provider.CategoryRuntime, Arguments: map[string]any{"operation": "pod_logs"}},
			reasoning.PlannedAction{Capability: provider.CategoryRuntime, Arguments: map[string]any{"operation": "events"}},
		)
	}
	add(provider.CategoryDeployTracker, nil)
	add(provider.CategoryBuildTracker, nil)
	add(provider.CategoryVCS, nil)
	add(provider.CategoryMetricsStore, nil)
	add(provider.CategoryTraceStore, nil)
	return plan
}
