package state

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	contractx "github.com/warrantix/warrantix/agent/contract"
)

// Run carries the mutable record of one analysis pass through the graph.
// Fields behind the mutex are shared across stages; result slots are written
// by exactly one analyzer goroutine each and read only after the fan-in
// barrier.
type Run struct {
	ID         string
	Request    contractx.AnalysisRequest
	StartedAt  time.Time
	FinishedAt time.Time

	mu             sync.Mutex
	classification contractx.Classification
	steps          []string
	notes          []string
	order          []string
	slots          map[string]*Slot
}

func NewRun(req contractx.AnalysisRequest, now time.Time) *Run {
	id := strings.TrimSpace(req.RequestID)
	if id == "" {
		id = uuid.NewString()
		req.RequestID = id
	}
	return &Run{
		ID:        id,
		Request:   req,
		StartedAt: now,
		slots:     make(map[string]*Slot),
	}
}

func (r *Run) SetClassification(cls contractx.Classification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classification = cls
}

func (r *Run) Classification() contractx.Classification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.classification
}

// MarkStep records a completed graph step in execution order.
func (r *Run) MarkStep(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, name)
}

func (r *Run) Steps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

// AddNote records a non-fatal observation, such as a forcibly deactivated
// analyzer.
func (r *Run) AddNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note)
}

func (r *Run) Notes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.notes...)
}

// OpenSlots pre-allocates one result slot per analyzer before the fan-out so
// the map itself is never mutated concurrently. Slot order is preserved for
// aggregation.
func (r *Run) OpenSlots(names []string) []*Slot {
	r.mu.Lock()
	defer r.mu.Unlock()

	opened := make([]*Slot, 0, len(names))
	for _, name := range names {
		if _, exists := r.slots[name]; exists {
			continue
		}
		slot := &Slot{Name: name}
		r.slots[name] = slot
		r.order = append(r.order, name)
		opened = append(opened, slot)
	}
	return opened
}

// Results returns the filled analyzer results in slot-open order, which the
// dispatcher keeps aligned with the fixed analyzer priority.
func (r *Run) Results() []contractx.AnalyzerResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	results := make([]contractx.AnalyzerResult, 0, len(r.order))
	for _, name := range r.order {
		if res, ok := r.slots[name].Result(); ok {
			results = append(results, res)
		}
	}
	return results
}

// AnyProduced reports whether at least one analyzer wrote its own result,
// as opposed to the dispatcher recording a timeout or crash on its behalf.
func (r *Run) AnyProduced() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		if r.slots[name].Produced() {
			return true
		}
	}
	return false
}

func (r *Run) Finish(now time.Time) {
	r.FinishedAt = now
}

// Slot holds one analyzer's result. The first write wins: when the
// dispatcher abandons a straggler and records a timeout, a late write from
// the analyzer goroutine is dropped.
type Slot struct {
	Name string

	mu       sync.Mutex
	filled   bool
	produced bool
	result   contractx.AnalyzerResult
}

// Fill stores a result the analyzer produced itself, failed ones included.
func (s *Slot) Fill(res contractx.AnalyzerResult) bool {
	return s.store(res, true)
}

// Abandon stores a result fabricated by the dispatcher for an analyzer that
// timed out, panicked or was canceled before reporting back.
func (s *Slot) Abandon(res contractx.AnalyzerResult) bool {
	return s.store(res, false)
}

func (s *Slot) store(res contractx.AnalyzerResult, produced bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filled {
		return false
	}
	s.filled = true
	s.produced = produced
	s.result = res
	return true
}

func (s *Slot) Result() (contractx.AnalyzerResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.filled
}

// Produced reports whether the slot holds a result written by its analyzer.
func (s *Slot) Produced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filled && s.produced
}
