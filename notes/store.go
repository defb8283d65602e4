package notes

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"orion/log"
	"orion/transport"
)

type entry struct {
	note Note
	seq  uint64 // bumped on every local edit; stale responses lose the compare
}

// Store is the client-side note cache. Mutations are optimistic: the
// local collection changes first, the server catches up, and failures
// degrade the affected note to Offline instead of surfacing.
type Store struct {
	client   *transport.Client
	pageSize int

	mu    sync.Mutex
	order []string
	byID  map[string]*entry
}

func NewStore(client *transport.Client, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Store{
		client:   client,
		pageSize: pageSize,
		byID:     map[string]*entry{},
	}
}

// Create inserts a new note at the head of the collection. On transport
// failure the note still appears, with a client-generated id and
// SyncState Offline; Create never fails past this boundary.
func (s *Store) Create(ctx context.Context, title, content string) Note {
	var out noteOut
	err := s.client.DoJSON(ctx, http.MethodPost, "/api/notes",
		notePayload{Title: title, Content: content}, &out)

	n := Note{Title: title, Content: content}
	if err != nil {
		log.Warnf("note create failed, keeping local copy: %v", err)
		n.ID = "local-" + uuid.NewString()
		n.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
		n.SyncState = Offline
	} else {
		n.ID = out.ID
		n.Title = out.Title
		n.Content = out.Content
		n.UpdatedAt = out.UpdatedAt
		n.SyncState = Synced
	}

	s.mu.Lock()
	s.byID[n.ID] = &entry{note: n}
	s.order = append([]string{n.ID}, s.order...)
	s.mu.Unlock()
	return n
}

// ApplyLocal records an edit synchronously: fields change, the note goes
// Pending, and its edit sequence advances. The network is not touched.
func (s *Store) ApplyLocal(id, title, content string) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return Note{}, fmt.Errorf("no such note %q", id)
	}
	e.note.Title = title
	e.note.Content = content
	e.note.SyncState = Pending
	e.seq++
	return e.note, nil
}

// Flush pushes the note's current fields to the server. If a newer local
// edit lands while the request is in flight, the response is discarded
// and the local state wins (compared by edit sequence, never wall clock).
func (s *Store) Flush(ctx context.Context, id string) (Note, error) {
	s.mu.Lock()
	e, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return Note{}, fmt.Errorf("no such note %q", id)
	}
	snapSeq := e.seq
	payload := notePayload{Title: e.note.Title, Content: e.note.Content}
	s.mu.Unlock()

	var out noteOut
	err := s.client.DoJSON(ctx, http.MethodPut, "/api/notes/"+id, payload, &out)

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok = s.byID[id]
	if !ok {
		// Deleted while the flush was in flight; user intent wins.
		return Note{}, nil
	}
	if e.seq != snapSeq {
		log.NoteDiscard(id, snapSeq, e.seq)
		return e.note, nil
	}
	if err != nil {
		e.note.SyncState = Offline
		return e.note, nil
	}
	e.note.Title = out.Title
	e.note.Content = out.Content
	e.note.UpdatedAt = out.UpdatedAt
	e.note.SyncState = Synced
	return e.note, nil
}

// Update is ApplyLocal followed by Flush: the optimistic change is
// visible before the request goes out.
func (s *Store) Update(ctx context.Context, id, title, content string) (Note, error) {
	if _, err := s.ApplyLocal(id, title, content); err != nil {
		return Note{}, err
	}
	return s.Flush(ctx, id)
}

// Delete removes the note immediately and fires the server delete in the
// same call. A failed delete is logged but the removal stands.
func (s *Store) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	if _, ok := s.byID[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if _, err := s.client.Do(ctx, http.MethodDelete, "/api/notes/"+id, nil); err != nil {
		log.Warnf("note delete %s failed (not resurrected): %v", id, err)
	}
}

// Get returns a copy of the note, if present.
func (s *Store) Get(id string) (Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return Note{}, false
	}
	return e.note, true
}

// List filters by case-insensitive substring over title and content.
// Collection order is preserved, not re-sorted by the filter.
func (s *Store) List(query string) []Note {
	q := strings.ToLower(query)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Note
	for _, id := range s.order {
		e := s.byID[id]
		if q == "" ||
			strings.Contains(strings.ToLower(e.note.Title), q) ||
			strings.Contains(strings.ToLower(e.note.Content), q) {
			out = append(out, e.note)
		}
	}
	return out
}

// Counts reports how many notes are Pending and Offline, for the status line.
func (s *Store) Counts() (pending, offline int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.byID {
		switch e.note.SyncState {
		case Pending:
			pending++
		case Offline:
			offline++
		}
	}
	return
}

// Refresh replaces Synced entries with the server's current collection.
// Local Pending/Offline versions are kept so unflushed edits survive.
func (s *Store) Refresh(ctx context.Context) error {
	var resp noteListResponse
	path := fmt.Sprintf("/api/notes?page_size=%d", s.pageSize)
	if err := s.client.DoJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]bool{}
	var order []string
	for _, out := range resp.Notes {
		seen[out.ID] = true
		order = append(order, out.ID)
		if e, ok := s.byID[out.ID]; ok && e.note.SyncState != Synced {
			continue // local edit wins until flushed
		}
		s.byID[out.ID] = &entry{note: Note{
			ID:        out.ID,
			Title:     out.Title,
			Content:   out.Content,
			UpdatedAt: out.UpdatedAt,
			SyncState: Synced,
		}}
	}
	// Keep local-only notes (offline creates) and drop synced notes the
	// server no longer has.
	for _, id := range s.order {
		e, ok := s.byID[id]
		if !ok || seen[id] {
			continue
		}
		if e.note.SyncState == Synced {
			delete(s.byID, id)
			continue
		}
		order = append(order, id)
	}
	s.order = order
	return nil
}

// TriggerSync asks the server to run its own sync pass, then refreshes
// the local collection. This is the manual retry path for Offline notes'
// reads; failed writes stay Offline until edited again.
func (s *Store) TriggerSync(ctx context.Context) error {
	if _, err := s.client.Do(ctx, http.MethodPost, "/api/sync", nil); err != nil {
		return err
	}
	return s.Refresh(ctx)
}
