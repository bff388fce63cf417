package history

import (
	"strings"
	"sync"
)

// Bridge applies resolved routes to a History and reports the locations it
// should complete on.
type Bridge struct {
	h History

	mu sync.Mutex
	// pending is the full location Apply is building in two steps (push, then
	// fragment replace); the intermediate push is not reported.
	pending string
}

// NewBridge wraps h.
func NewBridge(h History) *Bridge {
	return &Bridge{h: h}
}

// Apply pushes fullPath without its fragment, then replaces the new entry with
// the fragment when there is one. Watchers see a single change carrying the
// fragment.
func (b *Bridge) Apply(fullPath string) {
	path, fragment, hasFragment := strings.Cut(fullPath, "#")
	if !hasFragment || fragment == "" {
		b.h.Push(path)
		return
	}

	target := path + "#" + fragment
	b.mu.Lock()
	b.pending = target
	b.mu.Unlock()

	b.h.Push(path)
	b.h.Replace(target)

	b.mu.Lock()
	b.pending = ""
	b.mu.Unlock()
}

// Location returns the history's current location.
func (b *Bridge) Location() Location {
	return b.h.Location()
}

// Watch calls fn for every location change except replaces that only touch the
// hash. The fragment replace issued by Apply is reported in place of its push.
func (b *Bridge) Watch(fn func(Location)) (stop func()) {
	var (
		mu   sync.Mutex
		prev = b.h.Location()
	)
	return b.h.Listen(func(loc Location, action Action) {
		b.mu.Lock()
		pending := b.pending
		b.mu.Unlock()

		mu.Lock()
		hashOnly := action == ActionReplace &&
			loc.Pathname == prev.Pathname && loc.Search == prev.Search
		prev = loc
		mu.Unlock()

		if pending != "" {
			switch {
			case action == ActionPush:
				return
			case action == ActionReplace && loc.String() == pending:
				fn(loc)
				return
			}
		}
		if hashOnly {
			return
		}
		fn(loc)
	})
}
