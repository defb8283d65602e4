package notes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"orion/transport"
)

func newTransportStore(t *testing.T, url string) *Store {
	t.Helper()
	return NewStore(transport.New(url), 100)
}

// countingServer records every PUT body so tests can assert how many
// flushes reached the wire and what they carried.
type countingServer struct {
	mu   sync.Mutex
	puts []notePayload
	fail bool
}

func (cs *countingServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/notes":
			body := readPayload(r)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"id":"n1","title":%q,"content":%q,"created_at":"t0","updated_at":"t0"}`,
				body.Title, body.Content)

		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/api/notes/"):
			cs.mu.Lock()
			fail := cs.fail
			cs.mu.Unlock()
			if fail {
				http.Error(w, "unavailable", http.StatusInternalServerError)
				return
			}
			body := readPayload(r)
			cs.mu.Lock()
			cs.puts = append(cs.puts, body)
			cs.mu.Unlock()
			id := strings.TrimPrefix(r.URL.Path, "/api/notes/")
			fmt.Fprintf(w, `{"id":%q,"title":%q,"content":%q,"created_at":"t0","updated_at":"t1"}`,
				id, body.Title, body.Content)

		default:
			http.NotFound(w, r)
		}
	})
}

func (cs *countingServer) putCount() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.puts)
}

func (cs *countingServer) lastPut() (notePayload, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.puts) == 0 {
		return notePayload{}, false
	}
	return cs.puts[len(cs.puts)-1], true
}

func newTestAutosaver(t *testing.T, debounce time.Duration, onFlush func(Note)) (*Autosaver, *Store, *countingServer) {
	t.Helper()
	cs := &countingServer{}
	srv := httptest.NewServer(cs.handler())
	t.Cleanup(srv.Close)
	store := newTransportStore(t, srv.URL)
	a := NewAutosaver(store, debounce, onFlush)
	t.Cleanup(a.Close)
	return a, store, cs
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

// A burst of edits inside the debounce window produces exactly one
// flush carrying the final content.
func TestDebounceCoalescing(t *testing.T) {
	flushed := make(chan Note, 4)
	a, s, cs := newTestAutosaver(t, 50*time.Millisecond, func(n Note) { flushed <- n })
	s.Create(context.Background(), "A", "")

	for i := 1; i <= 5; i++ {
		if _, err := a.Edit("n1", "A", fmt.Sprintf("draft %d", i)); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond) // well inside the window
	}

	select {
	case n := <-flushed:
		if n.Content != "draft 5" {
			t.Errorf("flushed content = %q, want final draft", n.Content)
		}
		if n.SyncState != Synced {
			t.Errorf("SyncState = %v, want Synced", n.SyncState)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no flush after debounce expired")
	}

	// Give a mistaken second timer a chance to fire.
	time.Sleep(150 * time.Millisecond)
	if got := cs.putCount(); got != 1 {
		t.Errorf("server saw %d PUTs, want 1", got)
	}
	if p, ok := cs.lastPut(); !ok || p.Content != "draft 5" {
		t.Errorf("server received %+v, want final content", p)
	}
}

// Switching notes flushes the previous note immediately, exactly once,
// even though its debounce timer had not expired.
func TestFlushOnSwitch(t *testing.T) {
	a, s, cs := newTestAutosaver(t, time.Hour, nil)
	s.Create(context.Background(), "B", "") // n1 from counting server
	a.Select("n1")

	if _, err := a.Edit("n1", "B", "unsaved"); err != nil {
		t.Fatal(err)
	}
	a.Select("other")

	waitFor(t, 2*time.Second, func() bool { return cs.putCount() == 1 })
	if p, _ := cs.lastPut(); p.Content != "unsaved" {
		t.Errorf("flush carried %q, want pending edit", p.Content)
	}
	if a.Flushes() != 1 {
		t.Errorf("Flushes = %d, want 1", a.Flushes())
	}

	// Switching again without edits must not flush again.
	a.Select("n1")
	a.Select("other")
	time.Sleep(50 * time.Millisecond)
	if got := cs.putCount(); got != 1 {
		t.Errorf("server saw %d PUTs after no-edit switch, want 1", got)
	}
}

func TestSelectSameNoteNoFlush(t *testing.T) {
	a, s, cs := newTestAutosaver(t, time.Hour, nil)
	s.Create(context.Background(), "A", "")
	a.Select("n1")
	a.Edit("n1", "A", "typing")
	a.Select("n1")

	time.Sleep(50 * time.Millisecond)
	if cs.putCount() != 0 {
		t.Error("re-selecting the same note must not flush it")
	}
}

// Close flushes every pending edit before returning.
func TestCloseFlushesPending(t *testing.T) {
	cs := &countingServer{}
	srv := httptest.NewServer(cs.handler())
	defer srv.Close()
	store := newTransportStore(t, srv.URL)
	a := NewAutosaver(store, time.Hour, nil)

	store.Create(context.Background(), "A", "")
	if _, err := a.Edit("n1", "A", "last words"); err != nil {
		t.Fatal(err)
	}

	a.Close()

	if got := cs.putCount(); got != 1 {
		t.Fatalf("server saw %d PUTs after Close, want 1", got)
	}
	if p, _ := cs.lastPut(); p.Content != "last words" {
		t.Errorf("Close flushed %q, want pending edit", p.Content)
	}

	n, _ := store.Get("n1")
	if n.SyncState != Synced {
		t.Errorf("SyncState = %v after Close flush, want Synced", n.SyncState)
	}
}

func TestEditAfterCloseDoesNotFlush(t *testing.T) {
	a, s, cs := newTestAutosaver(t, 10*time.Millisecond, nil)
	s.Create(context.Background(), "A", "")
	a.Close()

	if _, err := a.Edit("n1", "A", "too late"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if cs.putCount() != 0 {
		t.Error("closed autosaver scheduled a flush")
	}

	// The optimistic edit itself still lands.
	n, _ := s.Get("n1")
	if n.Content != "too late" || n.SyncState != Pending {
		t.Errorf("got %+v, want Pending local edit", n)
	}
}

// A failed flush degrades the note to Offline; there is no retry timer.
func TestFailedFlushGoesOffline(t *testing.T) {
	flushed := make(chan Note, 1)
	a, s, cs := newTestAutosaver(t, 20*time.Millisecond, func(n Note) { flushed <- n })
	s.Create(context.Background(), "A", "")

	cs.mu.Lock()
	cs.fail = true
	cs.mu.Unlock()

	if _, err := a.Edit("n1", "A", "doomed"); err != nil {
		t.Fatal(err)
	}

	select {
	case n := <-flushed:
		if n.SyncState != Offline {
			t.Errorf("SyncState = %v, want Offline", n.SyncState)
		}
		if n.Content != "doomed" {
			t.Errorf("Content = %q, edit discarded on failure", n.Content)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("flush never attempted")
	}

	time.Sleep(100 * time.Millisecond)
	if a.Flushes() != 1 {
		t.Errorf("Flushes = %d, want 1 (no automatic retry)", a.Flushes())
	}
}
