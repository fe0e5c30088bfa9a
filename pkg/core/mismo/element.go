// Package mismo renders canonical records as MISMO residential XML. Element
// ordering inside a container is significant, so the emitter builds an
// explicit ordered tree instead of marshaling structs.
package mismo

import (
	"strings"
)

// Element is one XML node. Children order is emission order.
type Element struct {
	Name     string
	Attrs    []Attr
	Text     string
	Children []*Element
}

// Attr is one XML attribute.
type Attr struct {
	Name  string
	Value string
}

// NewElement creates a childless element.
func NewElement(name string) *Element {
	return &Element{Name: name}
}

// Child appends and returns a new child container.
func (e *Element) Child(name string) *Element {
	c := NewElement(name)
	e.Children = append(e.Children, c)
	return c
}

// Leaf appends a text element only when the value is non-empty after trim.
// Returns whether the element was emitted.
func (e *Element) Leaf(name, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	e.Children = append(e.Children, &Element{Name: name, Text: value})
	return true
}

// Attr sets an attribute on the element.
func (e *Element) Attr(name, value string) *Element {
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
	return e
}

// Empty reports whether the element carries no text, children or attributes.
func (e *Element) Empty() bool {
	return e.Text == "" && len(e.Children) == 0 && len(e.Attrs) == 0
}

// Prune removes empty containers bottom-up so optional sections vanish when
// nothing filled them.
func (e *Element) Prune() {
	kept := e.Children[:0]
	for _, c := range e.Children {
		c.Prune()
		if !c.Empty() {
			kept = append(kept, c)
		}
	}
	e.Children = kept
}

// Render pretty-prints the tree with two-space indentation and an XML
// declaration.
func (e *Element) Render() string {
	var sb strings.Builder
	sb.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	e.render(&sb, 0)
	return sb.String()
}

func (e *Element) render(sb *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	sb.WriteString(indent)
	sb.WriteString("<")
	sb.WriteString(e.Name)
	for _, a := range e.Attrs {
		sb.WriteString(" ")
		sb.WriteString(a.Name)
		sb.WriteString("=\"")
		sb.WriteString(escape(a.Value))
		sb.WriteString("\"")
	}
	if e.Text == "" && len(e.Children) == 0 {
		sb.WriteString("/>\n")
		return
	}
	sb.WriteString(">")
	if e.Text != "" {
		sb.WriteString(escape(e.Text))
		sb.WriteString("</")
		sb.WriteString(e.Name)
		sb.WriteString(">\n")
		return
	}
	sb.WriteString("\n")
	for _, c := range e.Children {
		c.render(sb, depth+1)
	}
	sb.WriteString(indent)
	sb.WriteString("</")
	sb.WriteString(e.Name)
	sb.WriteString(">\n")
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

func escape(s string) string {
	return escaper.Replace(s)
}
