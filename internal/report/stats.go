// Package report accumulates run statistics and renders verification
// results for people and for other tools.
package report

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/btraven00/linkscan/internal/status"
	"github.com/btraven00/linkscan/internal/verifier"
)

// Stats counts what a run has processed so far. It is owned by the command
// driving the run and is safe for concurrent use; a batch is applied under
// one lock so readers never see its results without its successes.
type Stats struct {
	mu             sync.Mutex
	startTime      time.Time
	filesProcessed int
	urlsFound      int
	urlsVerified   int
	successCount   int
	byCategory     map[status.Category]int
}

// NewStats starts the clock for a run.
func NewStats() *Stats {
	return &Stats{
		startTime:  time.Now(),
		byCategory: make(map[status.Category]int),
	}
}

// AddFile records one processed file and the candidates it contributed.
func (s *Stats) AddFile(found int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filesProcessed++
	s.urlsFound += found
}

// AddFound records candidates that came from outside any file.
func (s *Stats) AddFound(found int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.urlsFound += found
}

// ApplyBatch folds a verified batch into the counters.
func (s *Stats) ApplyBatch(b verifier.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.urlsVerified += len(b.Results)
	s.successCount += b.Successes

	for _, r := range b.Results {
		s.byCategory[r.Category]++
	}
}

// CategoryCount is one row of the status distribution.
type CategoryCount struct {
	Category status.Category `json:"status"`
	Label    string          `json:"label"`
	Count    int             `json:"count"`
}

// Summary is a consistent snapshot of Stats.
type Summary struct {
	GeneratedAt    time.Time       `json:"generated_at"`
	FilesProcessed int             `json:"files_processed"`
	URLsFound      int             `json:"urls_found"`
	URLsVerified   int             `json:"urls_verified"`
	SuccessCount   int             `json:"success_count"`
	SuccessRate    float64         `json:"success_rate"`
	Elapsed        time.Duration   `json:"elapsed_ns"`
	Distribution   []CategoryCount `json:"distribution"`
}

// Snapshot returns the current counters. The distribution is sorted by
// count, most frequent first, with ties in report order.
func (s *Stats) Snapshot() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := Summary{
		GeneratedAt:    time.Now(),
		FilesProcessed: s.filesProcessed,
		URLsFound:      s.urlsFound,
		URLsVerified:   s.urlsVerified,
		SuccessCount:   s.successCount,
		SuccessRate:    float64(s.successCount) / float64(max(s.urlsVerified, 1)) * 100,
		Elapsed:        time.Since(s.startTime),
	}

	for _, c := range status.Categories {
		if n := s.byCategory[c]; n > 0 {
			summary.Distribution = append(summary.Distribution, CategoryCount{
				Category: c,
				Label:    c.Label(),
				Count:    n,
			})
		}
	}

	slices.SortStableFunc(summary.Distribution, func(a, b CategoryCount) int {
		return cmp.Compare(b.Count, a.Count)
	})

	return summary
}
