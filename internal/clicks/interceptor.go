// Package clicks turns in-app anchor clicks into navigation requests instead
// of full page loads.
package clicks

import (
	"errors"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"navkit/internal/model"
	"navkit/internal/resolve"
)

// ancestorLevels is how far above the click target the interceptor looks for
// an anchor.
const ancestorLevels = 3

// ErrAttached is returned by a second Attach.
var ErrAttached = errors.New("clicks: interceptor already attached")

// Element is a node of the document the click happened in.
type Element interface {
	TagName() string // lower-case
	Attr(name string) (string, bool)
	Parent() Element // nil at the top
}

// Event is a click.
type Event interface {
	Target() Element
	PreventDefault()
}

// EventTarget accepts listeners, typically a document.
type EventTarget interface {
	AddEventListener(kind string, fn func(Event)) (remove func())
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Interceptor) { i.logger = l }
}

// Interceptor decides which anchor clicks stay inside the application.
type Interceptor struct {
	navigate func(model.Search)
	page     func() string
	logger   *zap.Logger

	mu     sync.Mutex
	remove func()
}

// New creates an interceptor. navigate receives intercepted targets; page
// returns the current page URL ("https://app.example/docs?x=1"), whose origin
// decides what counts as same-origin.
func New(navigate func(model.Search), page func() string, opts ...Option) *Interceptor {
	i := &Interceptor{
		navigate: navigate,
		page:     page,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Attach registers the click listener on target. An interceptor listens on
// exactly one target at a time.
func (i *Interceptor) Attach(target EventTarget) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.remove != nil {
		return ErrAttached
	}
	i.remove = target.AddEventListener("click", func(ev Event) { i.Handle(ev) })
	return nil
}

// Detach removes the listener.
func (i *Interceptor) Detach() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.remove != nil {
		i.remove()
		i.remove = nil
	}
}

// Handle processes one click and reports whether it was intercepted.
func (i *Interceptor) Handle(ev Event) bool {
	anchor := findAnchor(ev.Target())
	if anchor == nil {
		return false
	}
	href, ok := anchor.Attr("href")
	if !ok || href == "" || href == "#" {
		return false
	}
	if IsExternal(anchor) {
		return false
	}

	if resolve.IsActionPath(href) {
		ev.PreventDefault()
		i.logger.Debug("intercepted action link", zap.String("href", href))
		i.navigate(model.PathString(href))
		return true
	}

	target, ok := i.sameOrigin(href)
	if !ok {
		return false
	}
	ev.PreventDefault()
	i.logger.Debug("intercepted link", zap.String("href", href), zap.String("target", target))
	i.navigate(model.PathObject(target))
	return true
}

func findAnchor(el Element) Element {
	for level := 0; el != nil && level <= ancestorLevels; level++ {
		if el.TagName() == "a" {
			return el
		}
		el = el.Parent()
	}
	return nil
}

// IsExternal reports whether an anchor is marked as leaving the application
// (data-external, or an "external" rel token).
func IsExternal(anchor Element) bool {
	if _, ok := anchor.Attr("data-external"); ok {
		return true
	}
	rel, _ := anchor.Attr("rel")
	for _, token := range strings.Fields(rel) {
		if strings.EqualFold(token, "external") {
			return true
		}
	}
	return false
}

// sameOrigin resolves href against the current page and returns its in-app
// path, query and fragment. Plain http:// links always leave the app.
func (i *Interceptor) sameOrigin(href string) (string, bool) {
	if strings.HasPrefix(strings.ToLower(href), "http://") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	base, err := url.Parse(i.page())
	if err != nil {
		return "", false
	}
	if ref.Scheme != "" && !strings.EqualFold(ref.Scheme, base.Scheme) {
		return "", false
	}
	if ref.Host != "" && !strings.EqualFold(ref.Host, base.Host) {
		return "", false
	}

	u := base.ResolveReference(ref)
	out := u.EscapedPath()
	if out == "" {
		out = "/"
	}
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		out += "#" + u.EscapedFragment()
	}
	return out, true
}
