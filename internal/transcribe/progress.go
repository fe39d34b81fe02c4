package transcribe

import (
	"sync"
	"time"
)

// Snapshot is the latest known state of a run.
type Snapshot struct {
	Identity  string    `json:"identity"`
	State     string    `json:"state"` // "idle", "running", "complete"
	Logged    int       `json:"logged"`
	Total     int       `json:"total"`
	Failed    int       `json:"failed"`
	LastChunk int       `json:"last_chunk"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker folds runner events into a Snapshot for concurrent readers.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{State: "idle", LastChunk: -1}}
}

// Handle records e. It is safe to use as Runner.OnEvent.
func (t *Tracker) Handle(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.Identity = e.Identity
	t.snap.Logged = e.Logged
	t.snap.Total = e.Total
	t.snap.UpdatedAt = time.Now()

	switch e.Type {
	case EventRunStarted:
		t.snap.State = "running"
		t.snap.Failed = 0
	case EventChunkDone:
		t.snap.LastChunk = e.Index
	case EventChunkFailed:
		t.snap.LastChunk = e.Index
		t.snap.Failed++
	case EventRunComplete:
		t.snap.State = "complete"
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Progress implements metrics.ProgressSource.
func (t *Tracker) Progress() (done, total int) {
	s := t.Snapshot()
	return s.Logged, s.Total
}
