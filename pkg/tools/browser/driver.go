package browser

import "context"

// Driver is the page-level surface the browser tools act on. Session
// implements it over Playwright.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Back(ctx context.Context) error
	Snapshot(ctx context.Context) (string, error)
	Click(ctx context.Context, ref string) error
	Type(ctx context.Context, ref, text string, submit bool) error
	PressKey(ctx context.Context, key string) error
	SelectOption(ctx context.Context, ref string, values []string) error
	Hover(ctx context.Context, ref string) error
	WaitFor(ctx context.Context, opts WaitOptions) error
	Content(ctx context.Context) (string, error)
	URL() string
	Title() (string, error)
}
