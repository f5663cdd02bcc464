package apiserver

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/moolen/inquest/internal/models"
)

// ReportStore keeps the most recent finished reports in memory, keyed by run
// id. Old reports are evicted least-recently-used; durable persistence is a
// concern of downstream consumers.
type ReportStore struct {
	cache *lru.Cache[string, *models.Report]
}

// NewReportStore creates a store holding up to size reports.
func NewReportStore(size int) (*ReportStore, error) {
	cache, err := lru.New[string, *models.Report](size)
	if err != nil {
		return nil, err
	}
	return &ReportStore{cache: cache}, nil
}

// Put stores a finished report.
func (s *ReportStore) Put(report *models.Report) {
	s.cache.Add(report.RunID, report)
}

// Get returns the report for a run id.
func (s *ReportStore) Get(runID string) (*models.Report, bool) {
	return s.cache.Get(runID)
}

// Len returns the number of stored reports.
func (s *ReportStore) Len() int {
	return s.cache.Len()
}
