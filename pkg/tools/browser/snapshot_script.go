package browser

import (
	"fmt"
	"strings"
)

// snapshotScript walks the DOM, stamps a ref attribute on every element with
// a role and prints an indented role tree:
//
//	- link "Home" [ref=e5]:
//	  - /url: /
//
// Refs are reassigned on every snapshot.
const snapshotScript = `(attr) => {
  const implicit = (el) => {
    const tag = el.tagName.toLowerCase();
    switch (tag) {
      case 'a': return el.hasAttribute('href') ? 'link' : '';
      case 'button': return 'button';
      case 'select': return el.multiple ? 'listbox' : 'combobox';
      case 'option': return 'option';
      case 'textarea': return 'textbox';
      case 'img': return 'img';
      case 'nav': return 'navigation';
      case 'main': return 'main';
      case 'header': return 'banner';
      case 'footer': return 'contentinfo';
      case 'aside': return 'complementary';
      case 'form': return 'form';
      case 'dialog': return 'dialog';
      case 'ul': case 'ol': return 'list';
      case 'li': return 'listitem';
      case 'p': return 'paragraph';
      case 'table': return 'table';
      case 'tr': return 'row';
      case 'td': return 'cell';
      case 'th': return 'columnheader';
      case 'hr': return 'separator';
      case 'video': case 'audio': return 'media';
      case 'h1': case 'h2': case 'h3': case 'h4': case 'h5': case 'h6': return 'heading';
      case 'input': {
        const type = (el.getAttribute('type') || 'text').toLowerCase();
        if (type === 'hidden') return '';
        if (type === 'checkbox') return 'checkbox';
        if (type === 'radio') return 'radio';
        if (type === 'range') return 'slider';
        if (type === 'number') return 'spinbutton';
        if (type === 'search') return 'searchbox';
        if (['button', 'submit', 'reset', 'image'].includes(type)) return 'button';
        return 'textbox';
      }
    }
    return '';
  };

  const visible = (el) => {
    if (el.getAttribute('aria-hidden') === 'true') return false;
    const style = window.getComputedStyle(el);
    if (style.display === 'none' || style.visibility === 'hidden') return false;
    const rect = el.getBoundingClientRect();
    return rect.width > 0 || rect.height > 0;
  };

  const clean = (s) => (s || '').replace(/\s+/g, ' ').trim().slice(0, 100);

  const nameOf = (el, role) => {
    const labelled = el.getAttribute('aria-labelledby');
    if (labelled) {
      const text = labelled.split(/\s+/).map((id) => document.getElementById(id)).filter(Boolean).map((n) => n.textContent).join(' ');
      if (clean(text)) return clean(text);
    }
    for (const a of ['aria-label', 'alt', 'title', 'placeholder']) {
      if (el.getAttribute(a)) return clean(el.getAttribute(a));
    }
    if (el.labels && el.labels.length) return clean(el.labels[0].textContent);
    if (['list', 'navigation', 'main', 'banner', 'contentinfo', 'form', 'table', 'row', 'dialog', 'complementary'].includes(role)) return '';
    return clean(el.innerText || el.textContent);
  };

  const lines = [];
  let next = 0;
  const walk = (el, depth) => {
    if (!(el instanceof Element) || !visible(el)) return;
    const tag = el.tagName.toLowerCase();
    if (['script', 'style', 'noscript', 'template', 'svg'].includes(tag)) return;

    const role = el.getAttribute('role') || implicit(el);
    let childDepth = depth;
    if (role) {
      next++;
      const ref = 'e' + next;
      el.setAttribute(attr, ref);
      const name = nameOf(el, role);
      let line = '  '.repeat(depth) + '- ' + role;
      if (name) line += ' ' + JSON.stringify(name);
      line += ' [ref=' + ref + ']';
      if (el.checked) line += ' [checked]';
      if (el.disabled) line += ' [disabled]';
      const href = role === 'link' ? el.getAttribute('href') : '';
      lines.push(href ? line + ':' : line);
      if (href) lines.push('  '.repeat(depth + 1) + '- /url: ' + href);
      childDepth = depth + 1;
    }
    for (const child of el.children) walk(child, childDepth);
  };

  document.querySelectorAll('[' + attr + ']').forEach((el) => el.removeAttribute(attr));
  if (document.body) walk(document.body, 0);
  return lines.join('\n');
}`

// formatSnapshot frames a role tree with the page location and title.
func formatSnapshot(url, title, tree string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Page URL: %s\n", url)
	fmt.Fprintf(&b, "- Page Title: %s\n", title)
	b.WriteString("- Page Snapshot:\n")
	b.WriteString("```yaml\n")
	if tree = strings.TrimRight(tree, "\n"); tree != "" {
		b.WriteString(tree)
		b.WriteString("\n")
	}
	b.WriteString("```\n")
	return b.String()
}
