// Package memory keeps the conversation record of a run.
package memory

import (
	"sync"
	"time"

	"github.com/entrhq/pilot/pkg/types"
)

// truncationMarker ends an entry shortened for transmission.
const truncationMarker = " …[truncated]"

// Entry is one message of the conversation.
type Entry struct {
	Role      types.MessageRole `yaml:"role" json:"role"`
	Content   string            `yaml:"content" json:"content"`
	Timestamp time.Time         `yaml:"timestamp" json:"timestamp"`

	// Step is the iteration the entry belongs to; 0 outside any iteration.
	Step int `yaml:"step,omitempty" json:"step,omitempty"`
}

// History is an append-only conversation record. Entries are never changed
// once appended; Window returns shortened copies.
type History struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{now: time.Now}
}

// Append records a message and returns the stored entry.
func (h *History) Append(role types.MessageRole, content string, step int) Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	e := Entry{Role: role, Content: content, Timestamp: h.now(), Step: step}
	h.entries = append(h.entries, e)
	return e
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Entries returns a copy of every entry in order.
func (h *History) Entries() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Window returns the last n entries with each content cut to maxChars
// characters. n <= 0 selects every entry; maxChars <= 0 disables cutting.
func (h *History) Window(n, maxChars int) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	start := 0
	if n > 0 && len(h.entries) > n {
		start = len(h.entries) - n
	}

	out := make([]Entry, 0, len(h.entries)-start)
	for _, e := range h.entries[start:] {
		e.Content = truncate(e.Content, maxChars)
		out = append(out, e)
	}
	return out
}

// Messages is Window converted to provider messages.
func (h *History) Messages(n, maxChars int) []*types.Message {
	window := h.Window(n, maxChars)
	msgs := make([]*types.Message, 0, len(window))
	for _, e := range window {
		msgs = append(msgs, &types.Message{Role: e.Role, Content: e.Content})
	}
	return msgs
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	return string(r[:maxChars]) + truncationMarker
}
