package snapshot

import (
	"regexp"
	"strings"
	"unicode"
)

// Element is one node of a page snapshot.
type Element struct {
	Role    string
	Name    string
	Ref     string
	URL     string
	Visible bool
}

// String formats the element as a single compact line:
//
//	[ref] role "name" → url
//
// The name and target are omitted when empty. Quotes and backslashes in the
// name are escaped so the line parses back to the same element.
func (e Element) String() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(e.Ref)
	b.WriteString("] ")
	b.WriteString(e.Role)
	if e.Name != "" {
		b.WriteString(` "`)
		b.WriteString(nameEscaper.Replace(e.Name))
		b.WriteString(`"`)
	}
	if e.URL != "" {
		b.WriteString(" → ")
		b.WriteString(e.URL)
	}
	return b.String()
}

// interactiveRoles are roles the agent can act on directly.
var interactiveRoles = map[string]bool{
	"button":           true,
	"link":             true,
	"textbox":          true,
	"searchbox":        true,
	"combobox":         true,
	"listbox":          true,
	"option":           true,
	"checkbox":         true,
	"radio":            true,
	"switch":           true,
	"slider":           true,
	"spinbutton":       true,
	"tab":              true,
	"menuitem":         true,
	"menuitemcheckbox": true,
	"menuitemradio":    true,
	"treeitem":         true,
}

// structuralRoles never carry anything the agent can use.
var structuralRoles = map[string]bool{
	"separator":    true,
	"presentation": true,
	"none":         true,
	"generic":      true,
}

// noiseKeywords mark navigational boilerplate sections.
var noiseKeywords = []string{
	"skip to",
	"skip navigation",
	"jump to",
	"keyboard shortcut",
	"accessibility",
	"screen reader",
}

var (
	// treeLine matches one node of an aria snapshot after the list marker:
	//   button "Search" [ref=e6] [cursor=pointer]
	//   paragraph [ref=e9]: Some text here
	treeLine = regexp.MustCompile(`^([A-Za-z][\w-]*)(?:\s+"((?:[^"\\]|\\.)*)")?((?:\s*\[[^\]]*\])*)\s*(?::\s*(.*))?$`)

	// compactLine matches the compressor's own output format.
	compactLine = regexp.MustCompile(`^\[([^\]\s]+)\]\s+([A-Za-z][\w-]*)(?:\s+"((?:[^"\\]|\\.)*)")?(?:\s+→\s+(\S.*))?$`)

	attrPattern = regexp.MustCompile(`\[([^\]=]+)(?:=([^\]]*))?\]`)

	nameEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

// parseElement parses a single body line (list marker already removed).
func parseElement(line string) (Element, bool) {
	if m := compactLine.FindStringSubmatch(line); m != nil {
		return Element{Ref: m[1], Role: m[2], Name: unescapeName(m[3]), URL: strings.TrimSpace(m[4]), Visible: true}, true
	}

	m := treeLine.FindStringSubmatch(line)
	if m == nil {
		return Element{}, false
	}

	el := Element{Role: m[1], Name: unescapeName(m[2]), Visible: true}
	for _, a := range attrPattern.FindAllStringSubmatch(m[3], -1) {
		key := strings.TrimSpace(a[1])
		val := strings.TrimSpace(a[2])
		switch key {
		case "ref":
			el.Ref = val
		case "url":
			el.URL = unquote(val)
		case "hidden":
			if val == "" || val == "true" {
				el.Visible = false
			}
		case "aria-hidden":
			if val == "true" {
				el.Visible = false
			}
		}
	}

	if el.Name == "" && m[4] != "" {
		el.Name = strings.TrimSpace(unquote(m[4]))
	}
	return el, true
}

// keep decides whether an element is worth showing to the model.
func keep(el Element) bool {
	if !el.Visible || el.Ref == "" {
		return false
	}
	role := strings.ToLower(el.Role)
	if structuralRoles[role] {
		return false
	}
	return interactiveRoles[role] || el.URL != "" || significantChars(el.Name) > 2
}

// isNoise reports whether an element heads a navigational boilerplate section.
func isNoise(el Element) bool {
	name := strings.ToLower(el.Name)
	if name == "" {
		return false
	}
	for _, kw := range noiseKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// significantChars counts letters and digits.
func significantChars(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// unescapeName resolves backslash escapes inside a quoted name.
func unescapeName(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
