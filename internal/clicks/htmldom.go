package clicks

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Node adapts an *html.Node to Element.
type Node struct {
	n *html.Node
}

// TagName returns the lower-case element name.
func (d Node) TagName() string {
	if d.n == nil || d.n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(d.n.Data)
}

// Attr returns an attribute value.
func (d Node) Attr(name string) (string, bool) {
	if d.n == nil {
		return "", false
	}
	for _, a := range d.n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// Parent returns the enclosing element, or nil.
func (d Node) Parent() Element {
	if d.n == nil {
		return nil
	}
	for p := d.n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return Node{n: p}
		}
	}
	return nil
}

// Text returns the concatenated text content.
func (d Node) Text() string {
	var sb strings.Builder
	var walk func(*html.Node, int)
	walk = func(n *html.Node, depth int) {
		if depth > 50 {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, depth+1)
		}
	}
	if d.n != nil {
		walk(d.n, 0)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Href is Attr("href") without the presence flag.
func (d Node) Href() string {
	v, _ := d.Attr("href")
	return v
}

// Document is a parsed page that can dispatch click events to listeners.
type Document struct {
	root *html.Node

	mu        sync.Mutex
	listeners map[string]map[int]func(Event)
	nextID    int
}

// ParseHTML parses a page.
func ParseHTML(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("clicks: parse html: %w", err)
	}
	return &Document{root: root, listeners: make(map[string]map[int]func(Event))}, nil
}

// AddEventListener registers fn for events of kind.
func (d *Document) AddEventListener(kind string, fn func(Event)) (remove func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listeners[kind] == nil {
		d.listeners[kind] = make(map[int]func(Event))
	}
	id := d.nextID
	d.nextID++
	d.listeners[kind][id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners[kind], id)
	}
}

// Listeners returns how many listeners are registered for kind.
func (d *Document) Listeners(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[kind])
}

// Anchors returns every <a> element in document order.
func (d *Document) Anchors() []Node {
	var out []Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			out = append(out, Node{n: n})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return out
}

// Find returns the first element matching pred, in document order.
func (d *Document) Find(pred func(Node) bool) (Node, bool) {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && pred(Node{n: n}) {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return Node{n: found}, found != nil
}

// Click dispatches a click on target and reports whether a listener
// prevented the default action.
func (d *Document) Click(target Element) bool {
	d.mu.Lock()
	fns := make([]func(Event), 0, len(d.listeners["click"]))
	for id := 0; id < d.nextID; id++ {
		if fn, ok := d.listeners["click"][id]; ok {
			fns = append(fns, fn)
		}
	}
	d.mu.Unlock()

	ev := NewClick(target)
	for _, fn := range fns {
		fn(ev)
	}
	return ev.Prevented()
}

// Click is a click event on an element.
type Click struct {
	target    Element
	prevented bool
}

// NewClick creates an event targeting el.
func NewClick(el Element) *Click {
	return &Click{target: el}
}

func (e *Click) Target() Element { return e.target }
func (e *Click) PreventDefault() { e.prevented = true }

// Prevented reports whether a listener called PreventDefault.
func (e *Click) Prevented() bool { return e.prevented }
