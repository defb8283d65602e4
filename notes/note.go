// Package notes holds the client-visible note collection, applies
// optimistic mutations against the sync server, and coalesces
// keystroke-driven edits into debounced flushes.
package notes

// SyncState tags whether the local copy of a note matches the server's
// last-known copy.
type SyncState int

const (
	Synced  SyncState = iota // server confirmed the current fields
	Pending                  // local edit not yet flushed
	Offline                  // flush attempted and failed
)

func (s SyncState) String() string {
	switch s {
	case Synced:
		return "synced"
	case Pending:
		return "pending"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

type Note struct {
	ID        string
	Title     string
	Content   string
	UpdatedAt string // server-authoritative once synced
	SyncState SyncState
}

// Wire shapes for /api/notes (see the server's NoteOut / NoteListResponse).
type noteOut struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type noteListResponse struct {
	Notes    []noteOut `json:"notes"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

type notePayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}
