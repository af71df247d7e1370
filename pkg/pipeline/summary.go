package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/ambientlog/condense/pkg/events"
)

// Bucket aggregates compressed events within one summary interval, keyed by
// the stream's own float-second timestamps.
type Bucket struct {
	Start float64        `json:"start"`
	End   float64        `json:"end"`
	Count int            `json:"count"`
	Types map[string]int `json:"types"`
}

// Summarizer folds compressed events into fixed-width activity buckets and
// per-type totals.
type Summarizer struct {
	interval float64
	buckets  map[float64]*Bucket
	byType   map[string]int
	total    int
}

// NewSummarizer creates a summarizer with the given bucket width in seconds.
func NewSummarizer(intervalSeconds float64) (*Summarizer, error) {
	if intervalSeconds <= 0 {
		return nil, errors.New("summary interval must be positive")
	}
	return &Summarizer{
		interval: intervalSeconds,
		buckets:  make(map[float64]*Bucket),
		byType:   make(map[string]int),
	}, nil
}

// Emit folds one compressed event into the summary. It never fails, so the
// summarizer can sit inside a sink fan-out.
func (s *Summarizer) Emit(ev events.Compressed) error {
	start := math.Floor(ev.TS/s.interval) * s.interval
	bucket := s.buckets[start]
	if bucket == nil {
		bucket = &Bucket{
			Start: start,
			End:   start + s.interval,
			Types: make(map[string]int),
		}
		s.buckets[start] = bucket
	}
	bucket.Count++
	bucket.Types[ev.Type]++
	s.byType[ev.Type]++
	s.total++
	return nil
}

// Total reports how many compressed events have been folded in.
func (s *Summarizer) Total() int {
	return s.total
}

// ByType returns a copy of the per-type totals.
func (s *Summarizer) ByType() map[string]int {
	out := make(map[string]int, len(s.byType))
	for k, v := range s.byType {
		out[k] = v
	}
	return out
}

// Buckets returns the aggregated buckets in chronological order.
func (s *Summarizer) Buckets() []Bucket {
	out := make([]Bucket, 0, len(s.buckets))
	for _, bucket := range s.buckets {
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}

// WriteFile persists the bucket summary as indented JSON.
func (s *Summarizer) WriteFile(path string) error {
	data, err := json.MarshalIndent(s.Buckets(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal activity summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write activity summary: %w", err)
	}
	return nil
}
