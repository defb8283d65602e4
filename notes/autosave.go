package notes

import (
	"context"
	"sync"
	"time"

	"orion/log"
)

const flushTimeout = 15 * time.Second

// Autosaver turns continuous keystroke edits into infrequent flushes.
// Each edited note gets its own debounce timer; a new edit to the same
// note restarts it. Switching the selected note or closing the app
// flushes immediately so no edit is lost on navigation.
type Autosaver struct {
	store    *Store
	debounce time.Duration
	onFlush  func(Note) // notified after every flush attempt, may be nil

	mu       sync.Mutex
	selected string
	timers   map[string]*time.Timer
	flushes  int
	closed   bool
}

func NewAutosaver(store *Store, debounce time.Duration, onFlush func(Note)) *Autosaver {
	if debounce <= 0 {
		debounce = 800 * time.Millisecond
	}
	return &Autosaver{
		store:    store,
		debounce: debounce,
		onFlush:  onFlush,
		timers:   map[string]*time.Timer{},
	}
}

// Edit applies the change optimistically and (re)starts the note's
// debounce timer, coalescing bursts into a single flush.
func (a *Autosaver) Edit(id, title, content string) (Note, error) {
	n, err := a.store.ApplyLocal(id, title, content)
	if err != nil {
		return Note{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return n, nil
	}
	if t, ok := a.timers[id]; ok {
		t.Stop()
	}
	a.timers[id] = time.AfterFunc(a.debounce, func() {
		if a.claim(id) {
			a.flush(id)
		}
	})
	return n, nil
}

// Select changes the selected note, flushing the previous selection's
// pending edit first so its last edit cannot be lost.
func (a *Autosaver) Select(id string) {
	a.mu.Lock()
	prev := a.selected
	a.selected = id
	a.mu.Unlock()

	if prev != "" && prev != id && a.claim(prev) {
		a.flush(prev)
	}
}

func (a *Autosaver) Selected() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selected
}

// Close flushes every pending note synchronously and stops new timers.
func (a *Autosaver) Close() {
	a.mu.Lock()
	a.closed = true
	var ids []string
	for id, t := range a.timers {
		t.Stop()
		ids = append(ids, id)
	}
	a.timers = map[string]*time.Timer{}
	a.mu.Unlock()

	for _, id := range ids {
		a.flush(id)
	}
}

// Flushes reports how many flushes were attempted (session accounting).
func (a *Autosaver) Flushes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushes
}

// claim removes the note's timer, establishing ownership of its flush.
// Exactly one caller wins when a timer expiry races a forced flush.
func (a *Autosaver) claim(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.timers[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(a.timers, id)
	return true
}

func (a *Autosaver) flush(id string) {
	a.mu.Lock()
	a.flushes++
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	start := time.Now()
	n, err := a.store.Flush(ctx, id)
	if err != nil {
		log.Warnf("flush %s: %v", id, err)
		return
	}
	log.NoteFlush(id, n.SyncState.String(), time.Since(start))
	if a.onFlush != nil {
		a.onFlush(n)
	}
}
