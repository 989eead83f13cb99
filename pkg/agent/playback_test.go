package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/pilot/pkg/llm/llmtest"
	"github.com/entrhq/pilot/pkg/types"
)

func TestIsMediaPage(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://m.youtube.com/watch?v=abc", true},
		{"https://music.youtube.com/watch?v=abc&list=RD", true},
		{"https://youtu.be/dQw4w9WgXcQ", true},
		{"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", true},
		{"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", true},
		{"https://soundcloud.com/artist/some-track", true},
		{"https://www.twitch.tv/somechannel", true},
		{"https://vimeo.com/76979871", true},
		{"https://www.netflix.com/watch/80100172", true},
		{"https://www.deezer.com/en/track/3135556", true},
		{"https://www.youtube.com/", false},
		{"https://www.youtube.com/results?search_query=jazz", false},
		{"https://open.spotify.com/", false},
		{"https://soundcloud.com/discover", false},
		{"https://vimeo.com/channels", false},
		{"https://example.com/watch", false},
		{"not a url", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMediaPage(tt.url))
		})
	}
}

func TestHasMediaElement(t *testing.T) {
	assert.True(t, hasMediaElement(&types.PageState{Elements: []string{`[e1] button "Play"`, `[e2] media`}}))
	assert.False(t, hasMediaElement(&types.PageState{Elements: []string{`[e1] button "Play media"`}}))
	assert.False(t, hasMediaElement(&types.PageState{}))
}

type recordingWaiter struct {
	urls []string
	err  error
}

func (w *recordingWaiter) Wait(_ context.Context, pageURL string) error {
	w.urls = append(w.urls, pageURL)
	return w.err
}

func TestPlaybackPolicy(t *testing.T) {
	videoPage := &types.PageState{URL: "https://www.youtube.com/watch?v=abc", Title: "Song", Loaded: true}
	searchPage := &types.PageState{URL: "https://www.youtube.com/results?search_query=song", Loaded: true}
	embedPage := &types.PageState{URL: "https://radio.example.org/live", Elements: []string{"[e4] media"}}

	tests := []struct {
		name     string
		task     string
		reply    string
		page     *types.PageState
		wantWait bool
	}{
		{
			name:     "media task on a video page",
			task:     "play a lofi playlist on youtube",
			reply:    "TASK COMPLETE: playing",
			page:     videoPage,
			wantWait: true,
		},
		{
			name:     "media element on an unknown site",
			task:     "listen to the radio",
			reply:    "TASK COMPLETE: tuned in",
			page:     embedPage,
			wantWait: true,
		},
		{
			name:  "media task left on a search page",
			task:  "play a lofi playlist on youtube",
			reply: "TASK COMPLETE: playing",
			page:  searchPage,
		},
		{
			name:  "media task that failed",
			task:  "play a lofi playlist on youtube",
			reply: "TASK FAILED: video unavailable",
			page:  videoPage,
		},
		{
			name:  "other task on a video page",
			task:  "buy a kettle",
			reply: "TASK COMPLETE: bought",
			page:  videoPage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			waiter := &recordingWaiter{}
			log := &eventLog{}
			a := newAgent(t, llmtest.New(llmtest.Text(tt.reply)),
				WithTools(&fakeGateway{page: tt.page}),
				WithPlaybackWaiter(waiter),
				WithEventSink(log.sink),
			)

			a.Run(context.Background(), tt.task)

			waits := log.ofType(types.EventTypePlaybackWait)
			if !tt.wantWait {
				assert.Empty(t, waiter.urls)
				assert.Empty(t, waits)
				return
			}
			assert.Equal(t, []string{tt.page.URL}, waiter.urls)
			require.Len(t, waits, 1)
			assert.Equal(t, tt.page.URL, waits[0].Content)
		})
	}
}

func TestPlaybackWithoutWaiterReturnsImmediately(t *testing.T) {
	gw := &fakeGateway{page: &types.PageState{URL: "https://youtu.be/abc"}}
	a := newAgent(t, llmtest.New(llmtest.Text("TASK COMPLETE: playing")), WithTools(gw))

	res := a.Run(context.Background(), "play the video")

	assert.True(t, res.Success)
	assert.Equal(t, "https://youtu.be/abc", res.FinalURL)
	assert.Equal(t, 1, gw.observe, "no waiter, so no final observation")
}

func TestPlaybackWaiterErrorKeepsResult(t *testing.T) {
	waiter := &recordingWaiter{err: errors.New("terminal closed")}
	gw := &fakeGateway{page: &types.PageState{URL: "https://youtu.be/abc"}}
	a := newAgent(t, llmtest.New(llmtest.Text("TASK COMPLETE: playing")),
		WithTools(gw), WithPlaybackWaiter(waiter))

	res := a.Run(context.Background(), "play the video")

	assert.True(t, res.Success)
	assert.Len(t, waiter.urls, 1)
	assert.Equal(t, 2, gw.observe, "a final observation decides whether to wait")
}

func TestPlaybackWaiterFunc(t *testing.T) {
	var got string
	w := PlaybackWaiterFunc(func(_ context.Context, pageURL string) error {
		got = pageURL
		return nil
	})
	require.NoError(t, w.Wait(context.Background(), "https://youtu.be/x"))
	assert.Equal(t, "https://youtu.be/x", got)
}
