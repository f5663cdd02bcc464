// Package engine implements the investigation workflow: a bounded state
// machine that sequences evidence planning, collection, knowledge
// augmentation, hypothesis generation, and deterministic scoring, iterating
// until the top hypothesis is confident enough or the iteration cap is hit.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/moolen/inquest/internal/kb"
	"github.com/moolen/inquest/internal/logging"
	"github.com/moolen/inquest/internal/metrics"
	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/provider"
	"github.com/moolen/inquest/internal/reasoning"
)

// Config holds the run-level tuning knobs.
type Config struct {
	// ConfidenceThreshold is the top-hypothesis confidence at which the run
	// finalizes without another iteration. Comparison is strict less-than.
	// Zero means unset and takes the default; an explicit zero threshold is
	// meaningless anyway since confidences are clamped to [0, 1].
	ConfidenceThreshold float64
	// MaxIterations bounds how many times the run may loop back to planning.
	// Zero is valid and means a single pass; negative means unset.
	MaxIterations int
	// ProviderTimeout is the per-invocation timeout for capability calls.
	ProviderTimeout time.Duration
	// CollectParallelism bounds concurrent actions within one Collect stage.
	CollectParallelism int
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.62,
		MaxIterations:       2,
		ProviderTimeout:     30 * time.Second,
		CollectParallelism:  4,
	}
}

// Engine runs investigations. It is safe for concurrent use: all per-run
// state lives in the State value, and the factory table is read-only.
type Engine struct {
	table    *provider.Table
	reasoner reasoning.Reasoner
	config   Config
	logger   *logging.Logger
	tracer   trace.Tracer
}

// New creates an engine over the given factory table and reasoner.
func New(table *provider.Table, reasoner reasoning.Reasoner, cfg Config) *Engine {
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = DefaultConfig().ConfidenceThreshold
	}
	if cfg.MaxIterations < 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	return &Engine{
		table:    table,
		reasoner: reasoner,
		config:   cfg,
		logger:   logging.GetLogger("engine"),
		tracer:   otel.Tracer("github.com/moolen/inquest/internal/engine"),
	}
}

// Investigate runs one full investigation for a webhook payload against the
// given knowledge base and returns the finalized report.
//
// Normalization and knowledge-slice failures are fatal and returned as
// errors; provider and reasoning failures degrade into a lower-confidence but
// still valid report.
func (e *Engine) Investigate(ctx context.Context, knowledge *kb.KnowledgeBase, payload map[string]any) (*models.Report, error) {
	started := time.Now()
	state := NewState(uuid.NewString())

	ctx, span := e.tracer.Start(ctx, "investigate",
		trace.WithAttributes(attribute.String("run_id", state.RunID)))
	defer span.End()

	report, err := e.run(ctx, state, knowledge, payload)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.RunsTotal.WithLabelValues("ok").Inc()
	metrics.RunDuration.Observe(time.Since(started).Seconds())
	metrics.Iterations.Observe(float64(report.Iterations))
	return report, nil
}

func (e *Engine) run(ctx context.Context, state *State, knowledge *kb.KnowledgeBase, payload map[string]any) (*models.Report, error) {
	// Normalize.
	state.Stage = StageNormalize
	incident, err := NormalizeWebhook(payload, time.Now())
	if err != nil {
		return nil, err
	}
	state.Incident = incident
	e.logger.Info("run %s: investigating %s/%s (%s)",
		state.RunID, incident.Subject, incident.Environment, incident.Severity)

	// LoadKnowledge. Unresolvable subjects and bindings abort here, before
	// any evidence is gathered.
	state.Stage = StageLoadKnowledge
	slice, err := knowledge.Slice(incident.Subject, incident.Environment)
	if err != nil {
		return nil, err
	}
	state.Slice = slice

	registry := provider.NewRegistry(e.table, slice.Providers)
	for capability, bindingID := range slice.Subject.Bindings {
		if _, err := registry.Resolve(bindingID); err != nil {
			return nil, fmt.Errorf("capability %q: %w", capability, err)
		}
	}

	// SeedAlert.
	state.Stage = StageSeedAlert
	state.AppendEvidence(seedAlertEvidence(incident))

	collector := NewCollector(registry, slice, e.config.ProviderTimeout, e.config.CollectParallelism)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.iterate(ctx, state, collector)

		top := state.Hypotheses[0]
		if top.Confidence < e.config.ConfidenceThreshold && state.Iteration < e.config.MaxIterations {
			state.Iteration++
			e.logger.Info("run %s: confidence %.3f below threshold, iterating (%d/%d)",
				state.RunID, top.Confidence, state.Iteration, e.config.MaxIterations)
			continue
		}
		break
	}

	state.Stage = StageTerminal
	state.Done = true
	return BuildReport(state), nil
}

// iterate executes one Plan -> Collect -> Augment -> Hypothesize -> Score
// pass. Evidence is cumulative across iterations.
func (e *Engine) iterate(ctx context.Context, state *State, collector *Collector) {
	ctx, span := e.tracer.Start(ctx, "iteration",
		trace.WithAttributes(attribute.Int("iteration", state.Iteration)))
	defer span.End()

	// Plan.
	state.Stage = StagePlan
	available := availableCapabilities(state.Slice)
	state.Plan = e.plan(ctx, state, available)

	// Collect.
	state.Stage = StageCollect
	results := collector.Collect(ctx, state.Incident, state.Plan)
	e.merge(state, results)
	e.merge(state, collector.Enrich(ctx, state))

	// Augment.
	state.Stage = StageAugment
	Augment(state)

	// Hypothesize. A failed or malformed reasoning call degrades to zero
	// candidates; scoring covers that with the sentinel.
	state.Stage = StageHypothesize
	candidates, err := e.reasoner.Hypothesize(ctx, reasoning.HypothesisRequest{
		Incident:  state.Incident,
		Excerpt:   state.Slice.Excerpt(),
		Evidence:  reasoning.Compact(state.Evidence),
		Iteration: state.Iteration,
	})
	if err != nil {
		e.logger.Warn("run %s: hypothesis generation failed: %v", state.RunID, err)
		candidates = nil
	}

	// Score.
	state.Stage = StageScore
	state.Hypotheses = ScoreCandidates(candidates, state)
}

// plan asks the reasoner for an action list and falls back to the
// deterministic rule-based plan when the answer is unusable.
func (e *Engine) plan(ctx context.Context, state *State, available []provider.Category) []reasoning.PlannedAction {
	actions, err := e.reasoner.Plan(ctx, reasoning.PlanRequest{
		Incident:     state.Incident,
		Excerpt:      state.Slice.Excerpt(),
		Available:    available,
		MissingKinds: missingKinds(state, available),
		Evidence:     reasoning.Compact(state.Evidence),
		Iteration:    state.Iteration,
	})
	if err != nil || len(actions) == 0 {
		if err != nil {
			e.logger.Warn("run %s: planner failed, using fallback: %v", state.RunID, err)
		}
		return fallbackPlan(state, available)
	}
	return actions
}

func (e *Engine) merge(state *State, results []ActionResult) {
	for _, r := range results {
		if !r.Produced() {
			metrics.ProviderFailures.WithLabelValues(string(r.Action.Capability)).Inc()
			continue
		}
		if state.AppendEvidence(r.Item) {
			metrics.EvidenceItems.WithLabelValues(string(r.Item.Kind)).Inc()
		}
	}
}

// seedAlertEvidence turns the triggering alert itself into the first evidence
// item of the run.
func seedAlertEvidence(incident models.Incident) models.EvidenceItem {
	return models.EvidenceItem{
		ID:        models.EvidenceID("alert", incident.Title, incident.TimeRange),
		Kind:      models.KindAlert,
		Source:    "webhook",
		TimeRange: incident.TimeRange,
		Query:     "triggering alert",
		Summary:   incident.Title,
		TopSignals: map[string]any{
			"labels":   incident.Labels,
			"severity": incident.Severity,
		},
		Tags: []string{"alert", "seed"},
	}
}
