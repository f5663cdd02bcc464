package engine

import (
	"fmt"

	"github.com/moolen/inquest/internal/models"
)

// Augment injects derived evidence from the knowledge slice. It performs no
// I/O and is idempotent: kinds already present in the evidence list are not
// synthesized again.
func Augment(state *State) {
	subject := state.Slice.Subject

	if len(subject.Dependencies) > 0 && !state.HasKind(models.KindServiceGraph) {
		nodes := append([]string{subject.Name}, subject.Dependencies...)
		edges := make([]string, 0, len(subject.Dependencies))
		for _, dep := range subject.Dependencies {
			edges = append(edges, subject.Name+"->"+dep)
		}

		state.AppendEvidence(models.EvidenceItem{
			ID:        models.EvidenceID("service_graph", subject.Name, state.Incident.TimeRange),
			Kind:      models.KindServiceGraph,
			Source:    models.SourceKnowledgeBase,
			TimeRange: state.Incident.TimeRange,
			Query:     "dependencies:" + subject.Name,
			Summary:   fmt.Sprintf("%s depends on %d downstream services.", subject.Name, len(subject.Dependencies)),
			TopSignals: map[string]any{
				"nodes": nodes,
				"edges": edges,
			},
			Tags: []string{"knowledge", "topology"},
		})
	}

	if len(subject.Runbooks) > 0 && !state.HasKind(models.KindRunbook) {
		pointers := make([]models.Pointer, 0, len(subject.Runbooks))
		titles := make([]string, 0, len(subject.Runbooks))
		for _, rb := range subject.Runbooks {
			pointers = append(pointers, models.Pointer{Title: rb.Title, URL: rb.URL})
			titles = append(titles, rb.Title)
		}

		state.AppendEvidence(models.EvidenceItem{
			ID:         models.EvidenceID("runbooks", subject.Name, state.Incident.TimeRange),
			Kind:       models.KindRunbook,
			Source:     models.SourceKnowledgeBase,
			TimeRange:  state.Incident.TimeRange,
			Query:      "runbooks:" + subject.Name,
			Summary:    fmt.Sprintf("%d runbooks are on file for %s.", len(subject.Runbooks), subject.Name),
			TopSignals: map[string]any{"titles": titles},
			Pointers:   pointers,
			Tags:       []string{"knowledge", "runbooks"},
		})
	}
}
