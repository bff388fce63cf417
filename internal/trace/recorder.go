package trace

import (
	"sync"
	"time"

	"navkit/internal/model"
	"navkit/internal/navigation"
)

// Recorder keeps a journal of every action a store reduces. Record is meant
// to be installed as a store subscriber.
type Recorder struct {
	mu     sync.Mutex
	events []model.TraceEvent
	now    func() time.Time
}

// NewRecorder creates an empty journal.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Record appends one action with the navigation phase it left behind.
func (r *Recorder) Record(a model.Action, nav model.NavigationState) {
	ev := model.TraceEvent{Type: a.ActionType(), Phase: nav.Phase}

	switch act := a.(type) {
	case navigation.PreRequest:
		ev.Search = act.Search.Path
	case navigation.Requested:
		ev.Path = act.Section.FullPath
		ev.Counter = act.Counter
		ev.PathFound = act.Section.PathFound
	case navigation.ActionInvoked:
		ev.Path = act.Section.Path
		ev.Search = act.NavigationAction
	case navigation.Denied:
		ev.Path = act.Section.FullPath
		ev.Counter = act.Counter
	case navigation.Allowed:
		ev.Path = act.Section.FullPath
		ev.Counter = act.Counter
	case navigation.PushHistory:
		ev.Path = act.Section.FullPath
		ev.Counter = act.Counter
	case navigation.Complete:
		ev.Path = act.Section.FullPath
		ev.PathFound = act.Section.PathFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ev.Seq = len(r.events) + 1
	ev.At = r.now()
	r.events = append(r.events, ev)
}

// Events returns a copy of the journal.
func (r *Recorder) Events() []model.TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.TraceEvent(nil), r.events...)
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset clears the journal.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
