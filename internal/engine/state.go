package engine

import (
	"github.com/moolen/inquest/internal/kb"
	"github.com/moolen/inquest/internal/models"
	"github.com/moolen/inquest/internal/reasoning"
)

// Stage names one state of the investigation state machine.
type Stage string

const (
	StageNormalize     Stage = "normalize"
	StageLoadKnowledge Stage = "load_knowledge"
	StageSeedAlert     Stage = "seed_alert"
	StagePlan          Stage = "plan"
	StageCollect       Stage = "collect"
	StageAugment       Stage = "augment"
	StageHypothesize   Stage = "hypothesize"
	StageScore         Stage = "score"
	StageTerminal      Stage = "terminal"
)

// State is the mutable aggregate threaded through one investigation run. It
// is owned exclusively by the engine for the duration of the run and never
// shared across concurrent runs.
type State struct {
	RunID    string
	Incident models.Incident
	Slice    *kb.Slice

	Evidence   []models.EvidenceItem
	Hypotheses []models.Hypothesis
	Plan       []reasoning.PlannedAction

	Iteration int
	Stage     Stage
	Done      bool

	seenEvidence map[string]bool
}

// NewState creates the state for one run.
func NewState(runID string) *State {
	return &State{
		RunID:        runID,
		Stage:        StageNormalize,
		seenEvidence: make(map[string]bool),
	}
}

// AppendEvidence adds an item unless its id is already present. Evidence ids
// are content-addressed, so a duplicate means the same query over the same
// window was collected twice; the first item wins.
func (s *State) AppendEvidence(item models.EvidenceItem) bool {
	if s.seenEvidence[item.ID] {
		return false
	}
	s.seenEvidence[item.ID] = true
	s.Evidence = append(s.Evidence, item)
	return true
}

// HasKind reports whether any collected evidence has the given kind.
func (s *State) HasKind(kind models.EvidenceKind) bool {
	for _, e := range s.Evidence {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// EvidenceByID resolves an evidence id against the run's evidence set.
func (s *State) EvidenceByID(id string) (models.EvidenceItem, bool) {
	if !s.seenEvidence[id] {
		return models.EvidenceItem{}, false
	}
	for _, e := range s.Evidence {
		if e.ID == id {
			return e, true
		}
	}
	return models.EvidenceItem{}, false
}
