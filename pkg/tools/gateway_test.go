package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/pilot/pkg/snapshot"
	"github.com/entrhq/pilot/pkg/types"
)

const rawSnapshot = "- Page URL: https://example.com/\n" +
	"- Page Title: Example\n" +
	"- Page Snapshot:\n" +
	"```yaml\n" +
	"- generic [ref=e1]:\n" +
	"  - link \"More information\" [ref=e2]:\n" +
	"    - /url: https://www.iana.org/domains/example\n" +
	"  - button \"Accept\" [ref=e3]\n" +
	"```\n"

type fakeBackend struct {
	tools   []ToolInfo
	results map[string]*Result
	errs    map[string]error
	delay   time.Duration

	mu      sync.Mutex
	calls   []string
	active  int32
	maxSeen int32
	closed  bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tools: []ToolInfo{
			{Name: "browser_navigate", Description: "Navigate"},
			{Name: "browser_snapshot", Description: "Snapshot"},
			{Name: "browser_click", Description: "Click"},
			{Name: "browser_evaluate", Description: "Run JS"},
			{Name: "browser_install", Description: "Install"},
		},
		results: map[string]*Result{
			"browser_navigate": {Content: "### Ran Playwright code\nawait page.goto('https://example.com/');\n\n" + rawSnapshot},
			"browser_snapshot": {Content: rawSnapshot},
		},
		errs: map[string]error{},
	}
}

func (f *fakeBackend) ListTools(context.Context) ([]ToolInfo, error) {
	return f.tools, nil
}

func (f *fakeBackend) Invoke(_ context.Context, name string, _ map[string]any) (*Result, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()

	if err := f.errs[name]; err != nil {
		return nil, err
	}
	if res, ok := f.results[name]; ok {
		return res, nil
	}
	return &Result{Content: "clicked"}, nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

type observingBackend struct {
	*fakeBackend
	state *types.PageState
}

func (o *observingBackend) Observe(context.Context) (*types.PageState, error) {
	return o.state, nil
}

func newGateway(t *testing.T, b Backend, opts ...GatewayOption) *Gateway {
	t.Helper()
	g, err := NewGateway(context.Background(), b, opts...)
	require.NoError(t, err)
	return g
}

func TestGatewayAllowList(t *testing.T) {
	g := newGateway(t, newFakeBackend(), WithAllowList("browser_navigate", "browser_snapshot", "browser_cl*"))

	var names []string
	for _, s := range g.Specs() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"browser_navigate", "browser_snapshot", "browser_click"}, names)

	_, err := g.Invoke(context.Background(), "browser_evaluate", nil)
	assert.ErrorIs(t, err, ErrToolNotAllowed)
}

func TestGatewayWithoutAllowListExposesEverything(t *testing.T) {
	g := newGateway(t, newFakeBackend())
	assert.Len(t, g.Specs(), 5)
}

func TestGatewayRejectsBadConfiguration(t *testing.T) {
	_, err := NewGateway(context.Background(), newFakeBackend(), WithAllowList("["))
	assert.Error(t, err)

	_, err = NewGateway(context.Background(), newFakeBackend(), WithAllowList("nothing_*"))
	assert.Error(t, err)

	_, err = NewGateway(context.Background(), nil)
	assert.Error(t, err)
}

func TestGatewayCompressesSnapshots(t *testing.T) {
	g := newGateway(t, newFakeBackend())

	out, err := g.Invoke(context.Background(), "browser_snapshot", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, snapshot.Compress(rawSnapshot), out)
	assert.Contains(t, out, `[e2] link "More information" → https://www.iana.org/domains/example`)
	assert.NotContains(t, out, "generic")
}

func TestGatewayAcknowledgesOtherTools(t *testing.T) {
	g := newGateway(t, newFakeBackend())

	out, err := g.Invoke(context.Background(), "browser_navigate", map[string]any{"url": "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, Acknowledgment, out)

	out, err = g.Invoke(context.Background(), "browser_click", map[string]any{"ref": "e3"})
	require.NoError(t, err)
	assert.Equal(t, Acknowledgment, out)

	stats := g.Stats()
	assert.Equal(t, 2, stats.Calls)
	assert.Equal(t, 2*len(Acknowledgment), stats.SentBytes)
	assert.Greater(t, stats.RawBytes, stats.SentBytes)
}

func TestGatewayErrors(t *testing.T) {
	b := newFakeBackend()
	b.results["browser_click"] = &Result{Content: strings.Repeat("x", 2000), IsError: true}
	b.errs["browser_navigate"] = errors.New("connection closed")
	g := newGateway(t, b, WithMaxErrorChars(100))

	out, err := g.Invoke(context.Background(), "browser_click", map[string]any{"ref": "e9"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(out, "Error: "))
	assert.LessOrEqual(t, len([]rune(out)), len("Error: ")+101)

	out, err = g.Invoke(context.Background(), "browser_navigate", nil)
	assert.EqualError(t, err, "connection closed")
	assert.Equal(t, "Error: connection closed", out)

	assert.Equal(t, 2, g.Stats().Failures)
}

func TestGatewayTruncatesErrorsOnRuneBoundaries(t *testing.T) {
	b := newFakeBackend()
	b.results["browser_click"] = &Result{Content: "x" + strings.Repeat("日本", 50), IsError: true}
	g := newGateway(t, b, WithMaxErrorChars(10))

	out, err := g.Invoke(context.Background(), "browser_click", map[string]any{"ref": "e9"})
	require.Error(t, err)
	assert.True(t, utf8.ValidString(out), "truncated error must stay valid UTF-8: %q", out)
	assert.Equal(t, "Error: x日本日本日本日本日…", out)
}

func TestGatewaySerializesCalls(t *testing.T) {
	b := newFakeBackend()
	b.delay = 5 * time.Millisecond
	g := newGateway(t, b)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = g.Invoke(context.Background(), "browser_click", nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&b.maxSeen))
	assert.Len(t, b.calls, 8)
}

func TestGatewayObserveViaSnapshot(t *testing.T) {
	g := newGateway(t, newFakeBackend())

	state, err := g.Observe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", state.URL)
	assert.Equal(t, "Example", state.Title)
	assert.True(t, state.Loaded)
	assert.Equal(t, []string{
		`[e2] link "More information" → https://www.iana.org/domains/example`,
		`[e3] button "Accept"`,
	}, state.Elements)
	assert.Equal(t, 2, state.TotalElements)
}

func TestPageStateFromSnapshotCountsAllElements(t *testing.T) {
	var b strings.Builder
	b.WriteString("- Page URL: https://shop.example.com/\n- Page Snapshot:\n```yaml\n")
	for i := 1; i <= 30; i++ {
		fmt.Fprintf(&b, "- link \"Item %d\" [ref=e%d]\n", i, i)
	}
	b.WriteString("```\n")

	state := PageStateFromSnapshot(b.String())
	assert.Len(t, state.Elements, previewElements)
	assert.Equal(t, 30, state.TotalElements)
	assert.Equal(t, 30, state.ElementCount())
}

func TestGatewayObserveViaObserver(t *testing.T) {
	want := &types.PageState{URL: "https://music.example.com/watch?v=1", Loaded: true}
	b := &observingBackend{fakeBackend: newFakeBackend(), state: want}
	g := newGateway(t, b)

	state, err := g.Observe(context.Background())
	require.NoError(t, err)
	assert.Same(t, want, state)
	assert.Empty(t, b.calls, "observer backends should not be asked for a snapshot")
}

func TestGatewayObserveWithoutSnapshotTool(t *testing.T) {
	g := newGateway(t, newFakeBackend(), WithAllowList("browser_click"))

	_, err := g.Observe(context.Background())
	assert.Error(t, err)
}

func TestGatewayClose(t *testing.T) {
	b := newFakeBackend()
	g := newGateway(t, b)
	require.NoError(t, g.Close())
	assert.True(t, b.closed)
}
