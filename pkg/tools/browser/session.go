package browser

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

var refPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// UpdateLastUsed updates the LastUsedAt timestamp to the current time.
func (s *Session) UpdateLastUsed() {
	s.LastUsedAt = time.Now()
}

// Navigate loads url and waits for the DOM to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.UpdateLastUsed()

	waitUntil := playwright.WaitUntilState("domcontentloaded")
	if _, err := s.Page.Goto(normalizeURL(url), playwright.PageGotoOptions{WaitUntil: &waitUntil}); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Back goes one entry back in the page history.
func (s *Session) Back(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.UpdateLastUsed()

	if _, err := s.Page.GoBack(); err != nil {
		return fmt.Errorf("navigation back failed: %w", err)
	}
	return nil
}

// Snapshot stamps a ref on every listed element and returns the page's
// accessibility tree.
func (s *Session) Snapshot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.UpdateLastUsed()

	out, err := s.Page.Evaluate(snapshotScript, refAttribute)
	if err != nil {
		return "", fmt.Errorf("snapshot failed: %w", err)
	}
	tree, _ := out.(string)

	// a title failure is not worth failing the snapshot for
	title, _ := s.Page.Title()
	return formatSnapshot(s.Page.URL(), title, tree), nil
}

// Click clicks the element with the given ref.
func (s *Session) Click(ctx context.Context, ref string) error {
	loc, err := s.locate(ctx, ref)
	if err != nil {
		return err
	}
	if err := loc.Click(); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

// Type replaces the value of an editable element, optionally pressing Enter.
func (s *Session) Type(ctx context.Context, ref, text string, submit bool) error {
	loc, err := s.locate(ctx, ref)
	if err != nil {
		return err
	}
	if err := loc.Fill(text); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	if submit {
		if err := loc.Press("Enter"); err != nil {
			return fmt.Errorf("submit failed: %w", err)
		}
	}
	return nil
}

// PressKey presses a key on the focused element.
func (s *Session) PressKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.UpdateLastUsed()

	if err := s.Page.Keyboard().Press(key); err != nil {
		return fmt.Errorf("key press failed: %w", err)
	}
	return nil
}

// SelectOption picks options of a select element by value, then by label.
func (s *Session) SelectOption(ctx context.Context, ref string, values []string) error {
	loc, err := s.locate(ctx, ref)
	if err != nil {
		return err
	}
	if _, err := loc.SelectOption(playwright.SelectOptionValues{Values: &values}); err == nil {
		return nil
	}
	if _, err := loc.SelectOption(playwright.SelectOptionValues{Labels: &values}); err != nil {
		return fmt.Errorf("select failed: %w", err)
	}
	return nil
}

// Hover moves the pointer over the element with the given ref.
func (s *Session) Hover(ctx context.Context, ref string) error {
	loc, err := s.locate(ctx, ref)
	if err != nil {
		return err
	}
	if err := loc.Hover(); err != nil {
		return fmt.Errorf("hover failed: %w", err)
	}
	return nil
}

// WaitFor waits for text to appear or disappear, or for a fixed time.
func (s *Session) WaitFor(ctx context.Context, opts WaitOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.UpdateLastUsed()

	if opts.Seconds > 0 {
		secs := opts.Seconds
		if secs > MaxWaitSeconds {
			secs = MaxWaitSeconds
		}
		s.Page.WaitForTimeout(secs * 1000)
	}
	if opts.Text != "" {
		err := s.Page.GetByText(opts.Text).First().WaitFor(playwright.LocatorWaitForOptions{
			State: playwright.WaitForSelectorStateVisible,
		})
		if err != nil {
			return fmt.Errorf("text %q did not appear: %w", opts.Text, err)
		}
	}
	if opts.TextGone != "" {
		err := s.Page.GetByText(opts.TextGone).First().WaitFor(playwright.LocatorWaitForOptions{
			State: playwright.WaitForSelectorStateHidden,
		})
		if err != nil {
			return fmt.Errorf("text %q did not disappear: %w", opts.TextGone, err)
		}
	}
	return nil
}

// Content returns the page HTML.
func (s *Session) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.Page.Content()
}

// URL returns the page URL.
func (s *Session) URL() string {
	return s.Page.URL()
}

// Title returns the page title.
func (s *Session) Title() (string, error) {
	return s.Page.Title()
}

// locate resolves a snapshot ref to a locator.
func (s *Session) locate(ctx context.Context, ref string) (playwright.Locator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.UpdateLastUsed()

	ref = NormalizeRef(ref)
	if !refPattern.MatchString(ref) {
		return nil, fmt.Errorf("invalid element ref %q", ref)
	}

	loc := s.Page.Locator(fmt.Sprintf(`[%s="%s"]`, refAttribute, ref))
	n, err := loc.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to find element %s: %w", ref, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("element %s not found, take a new snapshot", ref)
	}
	return loc.First(), nil
}

// NormalizeRef accepts "e5", "[e5]" and "ref=e5".
func NormalizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = strings.TrimPrefix(ref, "[")
	ref = strings.TrimSuffix(ref, "]")
	ref = strings.TrimPrefix(ref, "ref=")
	return strings.TrimSpace(ref)
}

// normalizeURL adds https:// to bare host names.
func normalizeURL(url string) string {
	url = strings.TrimSpace(url)
	if url == "" || strings.Contains(url, "://") || strings.HasPrefix(url, "about:") || strings.HasPrefix(url, "data:") {
		return url
	}
	return "https://" + url
}
