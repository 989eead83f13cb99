package memory

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/pilot/pkg/types"
)

func newTestHistory() *History {
	h := NewHistory()
	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	n := 0
	h.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return h
}

func TestAppendAndEntries(t *testing.T) {
	h := newTestHistory()
	first := h.Append(types.RoleUser, "open the page", 1)
	h.Append(types.RoleAssistant, "done", 1)

	require.Equal(t, 2, h.Len())
	entries := h.Entries()
	assert.Equal(t, first, entries[0])
	assert.Equal(t, types.RoleAssistant, entries[1].Role)
	assert.Equal(t, 1, entries[1].Step)
	assert.True(t, entries[1].Timestamp.After(entries[0].Timestamp))

	entries[0].Content = "changed"
	assert.Equal(t, "open the page", h.Entries()[0].Content, "Entries returns a copy")
}

func TestWindow(t *testing.T) {
	h := newTestHistory()
	for i, c := range []string{"one", "two", "three", "four"} {
		h.Append(types.RoleUser, c, i+1)
	}

	tests := []struct {
		name     string
		n        int
		maxChars int
		want     []string
	}{
		{name: "last two", n: 2, want: []string{"three", "four"}},
		{name: "more than available", n: 10, want: []string{"one", "two", "three", "four"}},
		{name: "all", n: 0, want: []string{"one", "two", "three", "four"}},
		{name: "truncated", n: 2, maxChars: 3, want: []string{"thr" + truncationMarker, "fou" + truncationMarker}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range h.Window(tt.n, tt.maxChars) {
				got = append(got, e.Content)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	h.Window(1, 1)
	assert.Equal(t, "four", h.Entries()[3].Content, "Window never mutates stored entries")
}

func TestWindowTruncatesRunes(t *testing.T) {
	h := newTestHistory()
	h.Append(types.RoleAssistant, strings.Repeat("é", 10), 1)

	w := h.Window(1, 4)
	assert.Equal(t, "éééé"+truncationMarker, w[0].Content)
}

func TestMessages(t *testing.T) {
	h := newTestHistory()
	h.Append(types.RoleUser, "task", 1)
	h.Append(types.RoleAssistant, "reply", 1)

	msgs := h.Messages(0, 0)
	require.Len(t, msgs, 2)
	assert.Equal(t, &types.Message{Role: types.RoleUser, Content: "task"}, msgs[0])
	assert.Equal(t, &types.Message{Role: types.RoleAssistant, Content: "reply"}, msgs[1])
}

func TestConcurrentAppend(t *testing.T) {
	h := NewHistory()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Append(types.RoleUser, "x", i)
			_ = h.Window(3, 10)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, h.Len())
}
