// Package history is the navigator's view of the URL: a push/replace/listen
// provider plus the bridge that applies resolved routes to it.
package history

import (
	"strings"
	"sync"
)

// Location is the current URL split the way a browser exposes it.
// Search keeps its leading "?" and Hash its leading "#".
type Location struct {
	Pathname string `json:"pathname"`
	Search   string `json:"search"`
	Hash     string `json:"hash"`
}

// ParseLocation splits "path?query#hash".
func ParseLocation(raw string) Location {
	var loc Location
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		loc.Hash = raw[i:]
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		loc.Search = raw[i:]
		raw = raw[:i]
	}
	if raw == "" {
		raw = "/"
	}
	loc.Pathname = raw
	return loc
}

// String reassembles the location.
func (l Location) String() string {
	return l.Pathname + l.Search + l.Hash
}

// Action says how a location was reached.
type Action string

const (
	ActionPush    Action = "PUSH"
	ActionReplace Action = "REPLACE"
	ActionPop     Action = "POP" // moved through the stack (back, forward, go)
)

// Listener is called after every location change.
type Listener func(loc Location, action Action)

// History is the URL store the navigator writes to and listens on.
type History interface {
	Push(path string)
	Replace(path string)
	Listen(fn Listener) (unlisten func())
	Location() Location
}

// Memory is an in-process History with a back/forward stack.
type Memory struct {
	mu        sync.Mutex
	entries   []Location
	index     int
	listeners map[int]Listener
	nextID    int
}

// NewMemory creates a history whose only entry is initial.
func NewMemory(initial string) *Memory {
	return &Memory{
		entries:   []Location{ParseLocation(initial)},
		listeners: make(map[int]Listener),
	}
}

// Push adds an entry after the current one, discarding any forward entries.
func (m *Memory) Push(path string) {
	loc := ParseLocation(path)
	m.mu.Lock()
	m.entries = append(m.entries[:m.index+1], loc)
	m.index = len(m.entries) - 1
	m.mu.Unlock()
	m.notify(loc, ActionPush)
}

// Replace overwrites the current entry.
func (m *Memory) Replace(path string) {
	loc := ParseLocation(path)
	m.mu.Lock()
	m.entries[m.index] = loc
	m.mu.Unlock()
	m.notify(loc, ActionReplace)
}

// Go moves n entries through the stack. It reports false, and notifies no one,
// when the move would leave the stack.
func (m *Memory) Go(n int) bool {
	m.mu.Lock()
	target := m.index + n
	if n == 0 || target < 0 || target >= len(m.entries) {
		m.mu.Unlock()
		return false
	}
	m.index = target
	loc := m.entries[target]
	m.mu.Unlock()
	m.notify(loc, ActionPop)
	return true
}

// Back is Go(-1).
func (m *Memory) Back() bool { return m.Go(-1) }

// Forward is Go(1).
func (m *Memory) Forward() bool { return m.Go(1) }

// Location returns the current entry.
func (m *Memory) Location() Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.index]
}

// Entries returns a copy of the stack and the current position.
func (m *Memory) Entries() ([]Location, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Location(nil), m.entries...), m.index
}

// Listen registers fn for every subsequent change.
func (m *Memory) Listen(fn Listener) (unlisten func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Memory) notify(loc Location, action Action) {
	m.mu.Lock()
	listeners := make([]Listener, 0, len(m.listeners))
	for id := 0; id < m.nextID; id++ {
		if fn, ok := m.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(loc, action)
	}
}
