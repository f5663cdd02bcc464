package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// EvidenceKind classifies an evidence item by the nature of its source.
type EvidenceKind string

const (
	KindAlert        EvidenceKind = "alert"
	KindLog          EvidenceKind = "log"
	KindEvent        EvidenceKind = "event"
	KindDeployment   EvidenceKind = "deployment"
	KindBuild        EvidenceKind = "build"
	KindChange       EvidenceKind = "change"
	KindMetric       EvidenceKind = "metric"
	KindTrace        EvidenceKind = "trace"
	KindServiceGraph EvidenceKind = "service_graph"
	KindRunbook      EvidenceKind = "runbook"
	KindOther        EvidenceKind = "other"
)

// SourceKnowledgeBase is the source value for evidence synthesized from the
// knowledge slice rather than collected from a provider.
const SourceKnowledgeBase = "knowledge_base"

// Pointer is an external link attached to an evidence item.
type Pointer struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// EvidenceItem is one normalized, attributable unit of collected information.
// Items are append-only within a run and never mutated once created.
type EvidenceItem struct {
	ID         string         `json:"id"`
	Kind       EvidenceKind   `json:"kind"`
	Source     string         `json:"source"`
	TimeRange  TimeRange      `json:"time_range"`
	Query      string         `json:"query"`
	Summary    string         `json:"summary"`
	Samples    []string       `json:"samples,omitempty"`
	TopSignals map[string]any `json:"top_signals,omitempty"`
	Pointers   []Pointer      `json:"pointers,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
}

// HasSignals reports whether the item carries a non-empty signal bag.
func (e EvidenceItem) HasSignals() bool {
	return len(e.TopSignals) > 0
}

// HasTag reports whether the item carries the given tag.
func (e EvidenceItem) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// EvidenceID derives a content-addressed identifier from a prefix, the query
// text, and the query window. Identical queries over identical windows
// collide by design so that repeated collection is deduplicable. Window
// boundaries are truncated to whole seconds before hashing: two queries whose
// windows differ only at sub-second precision produce the same id.
func EvidenceID(prefix, query string, tr TimeRange) string {
	content := fmt.Sprintf("%s|%s|%d|%d",
		prefix, query, tr.Start.Truncate(time.Second).Unix(), tr.End.Truncate(time.Second).Unix())
	sum := sha256.Sum256([]byte(content))
	return prefix + "_" + hex.EncodeToString(sum[:])[:10]
}
