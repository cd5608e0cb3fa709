// File: internal/browser/elements.go
package browser

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/dkovalq/pagepilot-cli/internal/config"
)

// Element is one interactive page element as presented to the agent.
type Element struct {
	Index    int    `json:"index"`
	Selector string `json:"selector"`
	Tag      string `json:"tag"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	HTML     string `json:"html"`
}

// harvestScript collects interactive elements in one in-page pass. Each entry
// carries a stable selector plus a truncated outerHTML snippet; the Go side
// re-parses the snippet so attribute handling stays out of page JS.
const harvestScript = `
(function(max) {
	const picked = [];
	const nodes = document.querySelectorAll(
		'a[href], button, input, select, textarea, [role="button"], [role="link"], [role="textbox"], [onclick]');
	const cssPath = (el) => {
		if (el.id) return '#' + CSS.escape(el.id);
		const parts = [];
		let node = el;
		while (node && node.nodeType === Node.ELEMENT_NODE && parts.length < 6) {
			let part = node.nodeName.toLowerCase();
			const parent = node.parentNode;
			if (parent) {
				const siblings = Array.from(parent.children).filter(c => c.nodeName === node.nodeName);
				if (siblings.length > 1) {
					part += ':nth-of-type(' + (siblings.indexOf(node) + 1) + ')';
				}
			}
			parts.unshift(part);
			if (node.id) { parts[0] = '#' + CSS.escape(node.id); break; }
			node = parent;
		}
		return parts.join(' > ');
	};
	for (const el of nodes) {
		if (picked.length >= max) break;
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 && rect.height === 0) continue;
		picked.push({selector: cssPath(el), html: el.outerHTML.slice(0, 400)});
	}
	return picked;
})(%d)`

// Snapshot harvests the currently visible interactive elements.
func (s *Session) Snapshot(ctx context.Context) ([]Element, error) {
	raw, err := s.Eval(ctx, fmt.Sprintf(harvestScript, s.cfg.MaxElements))
	if err != nil {
		return nil, fmt.Errorf("element harvest failed: %w", err)
	}

	entries, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("element harvest returned unexpected shape %T", raw)
	}

	elements := make([]Element, 0, len(entries))
	for _, entry := range entries {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		selector, _ := m["selector"].(string)
		outerHTML, _ := m["html"].(string)

		elem, err := parseElement(outerHTML, selector)
		if err != nil {
			s.logger.Debug("Skipping unparseable element", zap.Error(err))
			continue
		}
		elem.Index = len(elements) + 1
		elements = append(elements, elem)
	}
	return elements, nil
}

// QueryOne resolves the first element matching a CSS selector.
func (s *Session) QueryOne(ctx context.Context, selector string) (*Element, error) {
	raw, err := s.Eval(ctx, fmt.Sprintf(
		`(function(){ const el = document.querySelector(%q); return el ? el.outerHTML.slice(0, 400) : null; })()`,
		selector))
	if err != nil {
		return nil, err
	}
	outerHTML, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("no element matches %q", selector)
	}
	elem, err := parseElement(outerHTML, selector)
	if err != nil {
		return nil, err
	}
	elem.Index = 1
	return &elem, nil
}

// QueryAll resolves every element matching a CSS selector.
func (s *Session) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	raw, err := s.Eval(ctx, fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(el => el.outerHTML.slice(0, 400))`,
		selector))
	if err != nil {
		return nil, err
	}
	entries, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("query for %q returned unexpected shape %T", selector, raw)
	}

	elements := make([]Element, 0, len(entries))
	for _, entry := range entries {
		outerHTML, ok := entry.(string)
		if !ok {
			continue
		}
		elem, err := parseElement(outerHTML, selector)
		if err != nil {
			continue
		}
		elem.Index = len(elements) + 1
		elements = append(elements, elem)
	}
	return elements, nil
}

// parseElement extracts tag, role, and accessible name from an outerHTML
// snippet. Truncated snippets are fine; the parser recovers unclosed tags.
func parseElement(outerHTML, selector string) (Element, error) {
	doc, err := html.Parse(strings.NewReader(outerHTML))
	if err != nil {
		return Element{}, fmt.Errorf("failed to parse element HTML: %w", err)
	}

	node := findFirstElement(doc)
	if node == nil {
		return Element{}, fmt.Errorf("no element node in snippet")
	}

	attrs := make(map[string]string, len(node.Attr))
	for _, a := range node.Attr {
		attrs[a.Key] = a.Val
	}

	elem := Element{
		Selector: selector,
		Tag:      node.Data,
		Role:     attrs["role"],
		HTML:     strings.TrimSpace(outerHTML),
	}
	if elem.Role == "" {
		elem.Role = implicitRole(node.Data, attrs["type"])
	}
	elem.Name = accessibleName(node, attrs)
	return elem, nil
}

// findFirstElement walks the parsed tree past the html/head/body scaffolding
// the parser inserts around fragments.
func findFirstElement(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data != "html" && n.Data != "head" && n.Data != "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirstElement(c); found != nil {
			return found
		}
	}
	return nil
}

func implicitRole(tag, inputType string) string {
	switch tag {
	case "a":
		return "link"
	case "button":
		return "button"
	case "select":
		return "combobox"
	case "textarea":
		return "textbox"
	case "input":
		switch inputType {
		case "button", "submit", "reset":
			return "button"
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		default:
			return "textbox"
		}
	default:
		return "generic"
	}
}

// accessibleName approximates the ARIA name computation: aria-label wins,
// then visible text, then placeholder, then value.
func accessibleName(node *html.Node, attrs map[string]string) string {
	if label := attrs["aria-label"]; label != "" {
		return label
	}
	if text := strings.TrimSpace(innerText(node)); text != "" {
		return text
	}
	if placeholder := attrs["placeholder"]; placeholder != "" {
		return placeholder
	}
	return attrs["value"]
}

func innerText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(innerText(c))
	}
	return sb.String()
}

// EncodeElements renders a snapshot in the configured element format for
// inclusion in the agent prompt.
func EncodeElements(elements []Element, format config.ElementFormat) string {
	if len(elements) == 0 {
		return "(no interactive elements visible)"
	}

	var sb strings.Builder
	for _, e := range elements {
		switch format {
		case config.ElementFormatHTML:
			fmt.Fprintf(&sb, "[%d] %s (selector: %s)\n", e.Index, collapseWhitespace(e.HTML), e.Selector)
		default:
			name := e.Name
			if len(name) > 80 {
				name = name[:80]
			}
			fmt.Fprintf(&sb, "[%d] %s %q (selector: %s)\n", e.Index, e.Role, name, e.Selector)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
