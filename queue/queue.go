package queue

import (
	"errors"
	"math/rand"
	"sync"

	"Musico/resolver"
)

// ErrIndexOutOfRange is returned by index-based operations for positions
// outside the pending queue. No clamping is done.
var ErrIndexOutOfRange = errors.New("queue index out of range")

// Entry is one request waiting in a guild's queue. Track stays nil until the
// player resolves the entry at dequeue time, so a queue full of pending
// requests costs nothing upstream until each one is about to play.
type Entry struct {
	Query       string
	RequestedBy string
	Track       *resolver.Track
}

// Display returns what the entry should be listed as: the resolved title
// once known, the raw query until then.
func (e *Entry) Display() string {
	if e.Track != nil {
		return e.Track.Title
	}
	return e.Query
}

// Queue holds the pending entries for one guild. Each Queue is owned by
// exactly one player; the mutex only guards against snapshot reads from the
// control surface racing the player's own mutations.
type Queue struct {
	mu      sync.Mutex
	entries []*Entry
	current *Entry
	loop    bool
}

func New() *Queue {
	return &Queue{}
}

// Append adds an entry to the back of the queue.
func (q *Queue) Append(e *Entry) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, e)
	return len(q.entries)
}

// PopNext advances to the next entry, honouring loop mode: with loop on and
// a current entry set, the same entry is returned again instead of the queue
// advancing. Returns nil when nothing is left to play.
func (q *Queue) PopNext() *Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.loop && q.current != nil {
		return q.current
	}
	return q.advance()
}

// SkipNext advances to the next entry regardless of loop mode. Used for
// explicit skips, which always move forward.
func (q *Queue) SkipNext() *Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.advance()
}

func (q *Queue) advance() *Entry {
	if len(q.entries) == 0 {
		q.current = nil
		return nil
	}
	q.current = q.entries[0]
	q.entries = q.entries[1:]
	return q.current
}

// DropNext discards the head of the pending queue without making it current.
// Used when a skip arrives while a previous skip is still completing, so no
// entry is ever skipped twice.
func (q *Queue) DropNext() *Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil
	}
	dropped := q.entries[0]
	q.entries = q.entries[1:]
	return dropped
}

// RemoveAt removes the pending entry at index i (0-based, excluding the
// current entry). The queue is left untouched on a bad index.
func (q *Queue) RemoveAt(i int) (*Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i < 0 || i >= len(q.entries) {
		return nil, ErrIndexOutOfRange
	}
	removed := q.entries[i]
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
	return removed, nil
}

// Shuffle uniformly permutes the pending entries. The current entry is not
// part of the pending slice so it is unaffected.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	rand.Shuffle(len(q.entries), func(i, j int) {
		q.entries[i], q.entries[j] = q.entries[j], q.entries[i]
	})
}

// Clear drops every pending entry and forgets the current one.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
	q.current = nil
}

// ClearPending drops every pending entry, leaving the current one alone.
func (q *Queue) ClearPending() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
}

// ClearCurrent forgets the current entry without touching pending ones.
func (q *Queue) ClearCurrent() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current = nil
}

// Current returns the entry now playing, nil when idle.
func (q *Queue) Current() *Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// Snapshot returns a copy of the pending entries in order, for display.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.entries))
	for i, e := range q.entries {
		out[i] = *e
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// ToggleLoop flips loop mode and returns the new state. A toggle during
// playback only takes effect at the next track completion, which falls out
// of PopNext only consulting the flag when it runs.
func (q *Queue) ToggleLoop() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.loop = !q.loop
	return q.loop
}

func (q *Queue) SetLoop(on bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.loop = on
}

func (q *Queue) Loop() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loop
}

// IsEmpty reports whether nothing is pending and nothing is current.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries) == 0 && q.current == nil
}
