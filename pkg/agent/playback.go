package agent

import (
	"context"
	"net/url"
	"strings"

	"github.com/gobwas/glob"

	"github.com/entrhq/pilot/pkg/agent/prompts"
	"github.com/entrhq/pilot/pkg/types"
)

// PlaybackWaiter blocks while media the agent started keeps playing. Wait
// returns when the user signals the end of playback or ctx is done.
type PlaybackWaiter interface {
	Wait(ctx context.Context, pageURL string) error
}

// PlaybackWaiterFunc adapts a function to PlaybackWaiter.
type PlaybackWaiterFunc func(ctx context.Context, pageURL string) error

// Wait calls f.
func (f PlaybackWaiterFunc) Wait(ctx context.Context, pageURL string) error {
	return f(ctx, pageURL)
}

// mediaPages match host+path of pages that play media on their own once
// opened. Hosts are matched without a leading "www." or "m.".
var mediaPages = []glob.Glob{
	glob.MustCompile("youtube.com/watch*"),
	glob.MustCompile("music.youtube.com/watch*"),
	glob.MustCompile("youtube.com/live/?*"),
	glob.MustCompile("youtu.be/?*"),
	glob.MustCompile("open.spotify.com/{track,album,playlist,episode,show,artist}/?*"),
	glob.MustCompile("soundcloud.com/?*/?*"),
	glob.MustCompile("twitch.tv/?*"),
	glob.MustCompile("vimeo.com/[0-9]*"),
	glob.MustCompile("netflix.com/watch/?*"),
	glob.MustCompile("deezer.com/*{track,album,playlist}/?*"),
}

// IsMediaPage reports whether pageURL looks like a page that is playing
// audio or video.
func IsMediaPage(pageURL string) bool {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")

	target := host + u.EscapedPath()
	for _, g := range mediaPages {
		if g.Match(target) {
			return true
		}
	}
	return false
}

// hasMediaElement reports whether the page lists an audio or video element.
func hasMediaElement(state *types.PageState) bool {
	for _, el := range state.Elements {
		if strings.Contains(el, "] media") {
			return true
		}
	}
	return false
}

// waitsForPlayback reports whether a successful run may wait on playback,
// which is the only case that needs a final observation.
func (a *Agent) waitsForPlayback(r *run) bool {
	return r.category == prompts.CategoryMediaPlayback && a.waiter != nil
}

// awaitPlayback keeps a successful media task alive until the user ends
// playback, so the browser is not torn down under a playing track.
func (a *Agent) awaitPlayback(ctx context.Context, r *run, state *types.PageState) {
	if r.category != prompts.CategoryMediaPlayback || a.waiter == nil || state == nil {
		return
	}
	if !IsMediaPage(state.URL) && !hasMediaElement(state) {
		a.logger.Debugf("run %s: %s does not look like a media page, not waiting", r.id, state.URL)
		return
	}

	a.logger.Infof("run %s: waiting for playback on %s to end", r.id, state.URL)
	a.sink.Emit(types.NewPlaybackWaitEvent(state.URL))
	if err := a.waiter.Wait(ctx, state.URL); err != nil && ctx.Err() == nil {
		a.logger.Warnf("run %s: playback wait ended with error: %v", r.id, err)
	}
}
