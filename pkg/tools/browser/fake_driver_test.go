package browser

import (
	"context"
	"fmt"
	"strings"
)

// fakeDriver records calls and serves canned page content.
type fakeDriver struct {
	url     string
	title   string
	html    string
	tree    string
	refs    map[string]bool
	failAll error

	calls []string
	typed []string
	waits []WaitOptions
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		url:   "about:blank",
		title: "",
		refs:  map[string]bool{"e1": true, "e2": true, "e3": true},
	}
}

func (f *fakeDriver) record(format string, args ...any) error {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.failAll
}

func (f *fakeDriver) checkRef(ref string) error {
	if !f.refs[NormalizeRef(ref)] {
		return fmt.Errorf("element %s not found, take a new snapshot", NormalizeRef(ref))
	}
	return nil
}

func (f *fakeDriver) Navigate(_ context.Context, url string) error {
	if err := f.record("navigate %s", url); err != nil {
		return err
	}
	f.url = url
	return nil
}

func (f *fakeDriver) Back(context.Context) error {
	return f.record("back")
}

func (f *fakeDriver) Snapshot(context.Context) (string, error) {
	if err := f.record("snapshot"); err != nil {
		return "", err
	}
	return formatSnapshot(f.url, f.title, f.tree), nil
}

func (f *fakeDriver) Click(_ context.Context, ref string) error {
	if err := f.record("click %s", ref); err != nil {
		return err
	}
	return f.checkRef(ref)
}

func (f *fakeDriver) Type(_ context.Context, ref, text string, submit bool) error {
	if err := f.record("type %s", ref); err != nil {
		return err
	}
	f.typed = append(f.typed, fmt.Sprintf("%s=%s submit=%v", NormalizeRef(ref), text, submit))
	return f.checkRef(ref)
}

func (f *fakeDriver) PressKey(_ context.Context, key string) error {
	return f.record("press %s", key)
}

func (f *fakeDriver) SelectOption(_ context.Context, ref string, values []string) error {
	if err := f.record("select %s %s", ref, strings.Join(values, ",")); err != nil {
		return err
	}
	return f.checkRef(ref)
}

func (f *fakeDriver) Hover(_ context.Context, ref string) error {
	if err := f.record("hover %s", ref); err != nil {
		return err
	}
	return f.checkRef(ref)
}

func (f *fakeDriver) WaitFor(_ context.Context, opts WaitOptions) error {
	f.waits = append(f.waits, opts)
	return f.record("wait")
}

func (f *fakeDriver) Content(context.Context) (string, error) {
	return f.html, f.failAll
}

func (f *fakeDriver) URL() string {
	return f.url
}

func (f *fakeDriver) Title() (string, error) {
	return f.title, nil
}
