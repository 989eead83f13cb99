// Package snapshot shrinks accessibility-tree page snapshots into a flat
// listing of the elements an agent can act on.
//
// A raw snapshot is an indented YAML-like tree, usually preceded by the page
// location and title:
//
//	- Page URL: https://example.com/
//	- Page Title: Example
//	- Page Snapshot:
//	```yaml
//	- banner [ref=e3]:
//	  - link "Home" [ref=e5]:
//	    - /url: /
//	  - button "Search" [ref=e6]
//	```
//
// Compress turns it into
//
//	Page URL: https://example.com/
//	Page Title: Example
//
//	Interactive elements (act on an element by its ref):
//	[e5] link "Home" → /
//	[e6] button "Search"
//	2 elements
//
// Compress never fails. Input it cannot make sense of is returned unchanged,
// and its own output compresses to itself.
package snapshot

import (
	"fmt"
	"regexp"
	"strings"
)

// Banner introduces the element listing.
const Banner = "Interactive elements (act on an element by its ref):"

var (
	headerLine = regexp.MustCompile(`^(?:-\s+)?Page (URL|Title):\s*(.*)$`)
	countLine  = regexp.MustCompile(`^\d+ elements?$`)
	urlChild   = regexp.MustCompile(`^/url:\s*(.*)$`)
)

// Page is the parsed form of a snapshot.
type Page struct {
	URL      string
	Title    string
	Elements []Element
}

// Result describes one compression.
type Result struct {
	Text            string
	OriginalBytes   int
	CompressedBytes int

	// Elements is the number of elements emitted.
	Elements int

	// Changed is false when the input was passed through untouched.
	Changed bool
}

// Reduction returns the fraction of bytes removed, between 0 and 1.
func (r Result) Reduction() float64 {
	if r.OriginalBytes == 0 || r.CompressedBytes >= r.OriginalBytes {
		return 0
	}
	return 1 - float64(r.CompressedBytes)/float64(r.OriginalBytes)
}

// Compress returns the compact listing for raw, or raw itself when nothing in
// it can be parsed.
func Compress(raw string) string {
	return CompressWithStats(raw).Text
}

// CompressWithStats is Compress plus size accounting.
func CompressWithStats(raw string) (res Result) {
	res = Result{Text: raw, OriginalBytes: len(raw), CompressedBytes: len(raw)}

	defer func() {
		if r := recover(); r != nil {
			res = Result{Text: raw, OriginalBytes: len(raw), CompressedBytes: len(raw)}
		}
	}()

	page, ok := Parse(raw)
	if !ok {
		return res
	}

	text := Format(page)
	return Result{
		Text:            text,
		OriginalBytes:   len(raw),
		CompressedBytes: len(text),
		Elements:        len(page.Elements),
		Changed:         text != raw,
	}
}

// Format renders a parsed page in the compact listing format.
func Format(page *Page) string {
	var b strings.Builder
	if page.URL != "" {
		fmt.Fprintf(&b, "Page URL: %s\n", page.URL)
	}
	if page.Title != "" {
		fmt.Fprintf(&b, "Page Title: %s\n", page.Title)
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(Banner)
	b.WriteString("\n")
	for _, el := range page.Elements {
		b.WriteString(el.String())
		b.WriteString("\n")
	}
	if len(page.Elements) == 1 {
		b.WriteString("1 element")
	} else {
		fmt.Fprintf(&b, "%d elements", len(page.Elements))
	}
	return b.String()
}

// Parse extracts the header and the kept elements from a raw or already
// compressed snapshot. ok is false when no line could be understood.
func Parse(raw string) (*Page, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, false
	}

	w := walker{page: &Page{}, suppressAt: -1, currentIndent: -1}
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		w.line(line)
	}

	if !w.recognized {
		return nil, false
	}
	w.flush()
	return w.page, true
}

// walker carries parse state across lines.
type walker struct {
	page       *Page
	recognized bool
	inBody     bool

	// suppressAt is the indent of the noise section being skipped, or -1.
	suppressAt int

	// current is the last element seen, waiting for a possible /url child.
	current       *Element
	currentIndent int
}

func (w *walker) line(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "```") {
		return
	}

	indent := indentOf(line)

	if w.suppressAt >= 0 {
		if indent > w.suppressAt {
			return
		}
		w.suppressAt = -1
	}

	if !w.inBody {
		if m := headerLine.FindStringSubmatch(trimmed); m != nil {
			w.recognized = true
			value := strings.TrimSpace(m[2])
			if m[1] == "URL" && w.page.URL == "" {
				w.page.URL = value
			} else if m[1] == "Title" && w.page.Title == "" {
				w.page.Title = value
			}
			return
		}
	}

	body := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
	switch {
	case body == "Page Snapshot:" || trimmed == Banner:
		w.recognized = true
		return
	case countLine.MatchString(body):
		w.recognized = true
		return
	}

	if m := urlChild.FindStringSubmatch(body); m != nil {
		if w.current != nil && indent > w.currentIndent && w.current.URL == "" {
			w.current.URL = unquote(m[1])
		}
		return
	}

	// tree nodes are always list items; bare words are prose, not elements
	if !strings.HasPrefix(trimmed, "-") && !strings.HasPrefix(body, "[") {
		return
	}

	el, ok := parseElement(body)
	if !ok {
		return
	}
	w.recognized = true
	w.inBody = true
	w.flush()

	if isNoise(el) {
		w.suppressAt = indent
		return
	}

	w.current = &el
	w.currentIndent = indent
}

// flush decides on the pending element now that its children have been seen.
func (w *walker) flush() {
	if w.current == nil {
		return
	}
	if keep(*w.current) {
		w.page.Elements = append(w.page.Elements, *w.current)
	}
	w.current = nil
	w.currentIndent = -1
}

// indentOf measures leading whitespace; a tab counts as two spaces.
func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 2
		default:
			return n
		}
	}
	return n
}
