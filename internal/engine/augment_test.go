package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/inquest/internal/kb"
	"github.com/moolen/inquest/internal/models"
)

func augmentState() *State {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	state := NewState("test-run")
	state.Incident = models.Incident{
		Subject:   "checkout",
		TimeRange: models.TimeRange{Start: start, End: start.Add(time.Hour)},
	}
	state.Slice = &kb.Slice{
		Subject: kb.Subject{
			Name:         "checkout",
			Dependencies: []string{"payments", "inventory"},
			Runbooks: []kb.Runbook{
				{Title: "Checkout runbook", URL: "https://wiki.internal/checkout"},
			},
		},
	}
	return state
}

func TestAugmentSynthesizesGraphAndRunbooks(t *testing.T) {
	state := augmentState()
	Augment(state)

	require.Len(t, state.Evidence, 2)

	graph := state.Evidence[0]
	assert.Equal(t, models.KindServiceGraph, graph.Kind)
	assert.Equal(t, models.SourceKnowledgeBase, graph.Source)
	assert.Equal(t, []string{"checkout", "payments", "inventory"}, graph.TopSignals["nodes"])
	assert.Equal(t, []string{"checkout->payments", "checkout->inventory"}, graph.TopSignals["edges"])

	runbook := state.Evidence[1]
	assert.Equal(t, models.KindRunbook, runbook.Kind)
	require.Len(t, runbook.Pointers, 1)
	assert.Equal(t, "https://wiki.internal/checkout", runbook.Pointers[0].URL)
}

func TestAugmentIsIdempotent(t *testing.T) {
	state := augmentState()
	Augment(state)
	Augment(state)
	assert.Len(t, state.Evidence, 2)
}

func TestAugmentSkipsExistingKinds(t *testing.T) {
	state := augmentState()
	state.AppendEvidence(models.EvidenceItem{ID: "sg_1", Kind: models.KindServiceGraph})

	Augment(state)

	kinds := make(map[models.EvidenceKind]int)
	for _, e := range state.Evidence {
		kinds[e.Kind]++
	}
	assert.Equal(t, 1, kinds[models.KindServiceGraph])
	assert.Equal(t, 1, kinds[models.KindRunbook])
}

func TestAugmentNothingToSynthesize(t *testing.T) {
	state := augmentState()
	state.Slice.Subject.Dependencies = nil
	state.Slice.Subject.Runbooks = nil
	Augment(state)
	assert.Empty(t, state.Evidence)
}
