package types

// PageState is a lightweight description of the automation environment
// used to frame the next prompt. It is derived fresh every iteration.
type PageState struct {
	// URL is the current location of the active page.
	URL string

	// Title is the document title of the active page.
	Title string

	// Loaded reports whether the page finished loading when it was observed.
	Loaded bool

	// Elements holds one-line previews of actionable elements, in document order.
	// It may be capped; TotalElements counts every element seen.
	Elements []string

	// TotalElements is the number of actionable elements on the page. Zero
	// means len(Elements).
	TotalElements int
}

// ElementCount returns the number of actionable elements on the page,
// including those left out of Elements.
func (p *PageState) ElementCount() int {
	if p == nil {
		return 0
	}
	if p.TotalElements > len(p.Elements) {
		return p.TotalElements
	}
	return len(p.Elements)
}

// IsEmpty reports whether nothing useful was observed.
func (p *PageState) IsEmpty() bool {
	return p == nil || (p.URL == "" && p.Title == "" && len(p.Elements) == 0)
}
