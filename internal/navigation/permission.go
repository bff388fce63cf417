package navigation

import (
	"sync"

	"navkit/internal/model"
)

// Decision resolves a pending permission check. Only the first call to Allow
// or Deny counts; it may come from any goroutine, at any time.
type Decision struct {
	once  *sync.Once
	allow func()
	deny  func()
}

func newDecision(allow, deny func()) Decision {
	return Decision{once: &sync.Once{}, allow: allow, deny: deny}
}

// Allow lets the attempt proceed.
func (d Decision) Allow() {
	if d.once == nil {
		return
	}
	d.once.Do(d.allow)
}

// Deny refuses the attempt.
func (d Decision) Deny() {
	if d.once == nil {
		return
	}
	d.once.Do(d.deny)
}

// PermissionFunc is consulted once per non-sync attempt. It must eventually
// call d.Allow or d.Deny; it may do so after returning.
type PermissionFunc func(route model.ResolvedRoute, d Decision)

// AllowAll is the default permission.
func AllowAll(_ model.ResolvedRoute, d Decision) { d.Allow() }

// DenyAll refuses every attempt.
func DenyAll(_ model.ResolvedRoute, d Decision) { d.Deny() }
