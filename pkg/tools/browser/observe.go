package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/entrhq/pilot/pkg/snapshot"
	"github.com/entrhq/pilot/pkg/types"
)

// maxObservedElements caps the elements an observation lists.
const maxObservedElements = 20

// observedRoles are the roles an observation lists.
var observedRoles = map[string]bool{
	"button":    true,
	"link":      true,
	"textbox":   true,
	"searchbox": true,
	"combobox":  true,
	"listbox":   true,
	"checkbox":  true,
	"radio":     true,
	"slider":    true,
	"tab":       true,
	"menuitem":  true,
	"media":     true,
}

// pageStateFromHTML summarises page HTML. Only elements stamped by the last
// snapshot are listed, since those are the refs the model can act on.
func pageStateFromHTML(content string) (*types.PageState, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	state := &types.PageState{
		Title:  extractTitle(doc),
		Loaded: strings.TrimSpace(content) != "",
	}
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			tag := strings.ToLower(n.Data)
			if isSkippedElement(tag) || isHidden(n) {
				return
			}
			if el, ok := observedElement(n); ok {
				state.TotalElements++
				if len(state.Elements) < maxObservedElements {
					state.Elements = append(state.Elements, el.String())
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return state, nil
}

// observedElement builds the listing entry for a stamped element.
func observedElement(n *html.Node) (snapshot.Element, bool) {
	ref := attr(n, refAttribute)
	if ref == "" {
		return snapshot.Element{}, false
	}
	role := attr(n, "role")
	if role == "" {
		role = implicitRole(n)
	}
	if !observedRoles[role] {
		return snapshot.Element{}, false
	}

	el := snapshot.Element{Ref: ref, Role: role, Name: accessibleName(n), Visible: true}
	if role == "link" {
		el.URL = attr(n, "href")
	}
	return el, true
}

// implicitRole mirrors the roles the snapshot script assigns.
func implicitRole(n *html.Node) string {
	switch strings.ToLower(n.Data) {
	case "a":
		if hasAttr(n, "href") {
			return "link"
		}
	case "button":
		return "button"
	case "select":
		if hasAttr(n, "multiple") {
			return "listbox"
		}
		return "combobox"
	case "textarea":
		return "textbox"
	case "video", "audio":
		return "media"
	case "input":
		switch strings.ToLower(attr(n, "type")) {
		case "hidden":
			return ""
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "range":
			return "slider"
		case "search":
			return "searchbox"
		case "button", "submit", "reset", "image":
			return "button"
		}
		return "textbox"
	}
	return ""
}

// accessibleName approximates the name a screen reader would announce.
func accessibleName(n *html.Node) string {
	for _, key := range []string{"aria-label", "alt", "title", "placeholder"} {
		if v := strings.TrimSpace(attr(n, key)); v != "" {
			return truncateName(v)
		}
	}
	return truncateName(textContent(n))
}

// textContent collects the visible text below n.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
			b.WriteString(" ")
		case html.ElementNode:
			if isSkippedElement(strings.ToLower(c.Data)) {
				return
			}
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func truncateName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 100 {
		return string(r[:100])
	}
	return s
}

// isSkippedElement returns true for elements that never hold page content
func isSkippedElement(tagName string) bool {
	switch tagName {
	case "script", "style", "noscript", "template", "iframe", "embed", "object", "svg", "head":
		return true
	}
	return false
}

// isHidden reports elements hidden by markup alone; computed styles are not
// available in static HTML.
func isHidden(n *html.Node) bool {
	if hasAttr(n, "hidden") || attr(n, "aria-hidden") == "true" {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(attr(n, "style")), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// extractTitle extracts the page title from the document
func extractTitle(doc *html.Node) string {
	var title string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
			if title != "" {
				return
			}
		}
	}
	traverse(doc)
	return title
}
