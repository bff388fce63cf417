// Package navigation drives the navigation lifecycle: it resolves intents
// against the route table, asks for permission, runs per-route handlers at the
// ACTION, BEFORE and AFTER stages, writes history and reports completions.
//
// The Navigator plugs into a store as middleware. Every decision it makes is
// taken on the store's dispatch loop; handlers run as store commands and their
// results come back as an internal action, so a slow handler never blocks the
// loop and a handler that navigates is processed after the current dispatch.
//
// Attempts are numbered by a monotonic request counter. Only the most recent
// attempt may pass permission, settle its BEFORE stage or fire a delayed push;
// older ones are dropped silently. AFTER-stage results are dropped when a newer
// completion happened while the handler ran.
package navigation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"navkit/internal/history"
	"navkit/internal/metrics"
	"navkit/internal/model"
	"navkit/internal/resolve"
	"navkit/internal/routes"
	"navkit/internal/store"
)

// Option configures a Navigator.
type Option func(*Navigator)

// WithPermission sets the permission check. The default allows everything.
func WithPermission(fn PermissionFunc) Option {
	return func(n *Navigator) {
		if fn != nil {
			n.permission = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(n *Navigator) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithMetrics records navigation events and handler timings.
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Navigator) { n.metrics = m }
}

// WithStateReader sets what handlers receive as application state. The
// default is the store's state.
func WithStateReader(fn func() any) Option {
	return func(n *Navigator) { n.readState = fn }
}

// Navigator owns the route table reference, the history bridge and the
// request bookkeeping for one application.
type Navigator struct {
	table      *routes.Table
	bridge     *history.Bridge
	permission PermissionFunc
	logger     *zap.Logger
	metrics    *metrics.Metrics
	readState  func() any

	counter    atomic.Int64 // last issued request
	generation atomic.Int64 // completions so far
	phase      atomic.String

	mu      sync.Mutex
	unwatch func()
}

// New creates a navigator over table writing to h.
func New(table *routes.Table, h history.History, opts ...Option) *Navigator {
	n := &Navigator{
		table:      table,
		bridge:     history.NewBridge(h),
		permission: AllowAll,
		logger:     zap.NewNop(),
	}
	n.phase.Store(string(model.PhaseIdle))
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Table returns the route table.
func (n *Navigator) Table() *routes.Table { return n.table }

// Phase returns the current phase.
func (n *Navigator) Phase() model.Phase { return model.Phase(n.phase.Load()) }

// Counter returns the last request counter issued.
func (n *Navigator) Counter() int64 { return n.counter.Load() }

// Location returns the history's current location.
func (n *Navigator) Location() history.Location { return n.bridge.Location() }

// Resolve matches search against a fresh snapshot of the table.
func (n *Navigator) Resolve(search model.Search) model.ResolvedRoute {
	return resolve.Resolve(n.table.Snapshot(), search)
}

// Close stops listening to history.
func (n *Navigator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.unwatch != nil {
		n.unwatch()
		n.unwatch = nil
	}
}

// Middleware returns the store middleware. Installing it starts listening to
// history; each location change is dispatched as a Complete.
func (n *Navigator) Middleware() store.Middleware {
	return func(api store.API) func(next store.DispatchFunc) store.DispatchFunc {
		n.watch(api)
		return func(next store.DispatchFunc) store.DispatchFunc {
			return func(a model.Action) {
				n.handle(api, next, a)
			}
		}
	}
}

func (n *Navigator) watch(api store.API) {
	stop := n.bridge.Watch(func(loc history.Location) {
		api.Dispatch(Complete{Section: n.Resolve(model.PathObject(loc.String()))})
	})

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.unwatch != nil {
		n.unwatch()
	}
	n.unwatch = stop
}

func (n *Navigator) handle(api store.API, next store.DispatchFunc, a model.Action) {
	switch act := a.(type) {
	case stageSettled:
		n.settle(api, act)
		return
	case pushDue:
		n.firePush(act.push)
		return
	}

	if strings.HasPrefix(a.ActionType(), "NAVIGATION_") {
		n.metrics.Event(a.ActionType())
	}
	next(a)

	switch act := a.(type) {
	case PreRequest:
		n.request(api, act)
	case *PreRequest:
		n.request(api, *act)
	case Sync:
		n.sync(api)
	case Requested:
		n.checkPermission(api, act)
	case Denied:
		n.logger.Debug("navigation denied", zap.String("path", act.Section.FullPath))
		if act.Counter == 0 || act.Counter == n.counter.Load() {
			n.setPhase(api, model.PhaseIdle)
		}
	case Allowed:
		n.allowed(api, act)
	case PushHistory:
		n.push(api, act)
	case Complete:
		n.complete(api, act)
	}
}

func (n *Navigator) request(api store.API, act PreRequest) {
	route := n.Resolve(act.Search)

	if resolve.IsActionPath(route.Path) {
		name := resolve.ActionName(route.Path)
		n.logger.Debug("navigation action", zap.String("action", name))
		def := ActionInvoked{NavigationAction: name, Section: route}
		n.runStage(api, stageRun{stage: model.StageAction, route: route, defaults: []model.Action{def}})
		return
	}

	counter := n.counter.Inc()
	id := uuid.NewString()
	n.logger.Debug("navigation requested",
		zap.String("request_id", id),
		zap.Int64("counter", counter),
		zap.String("path", route.FullPath),
		zap.Bool("found", route.PathFound),
		zap.Duration("delay", act.Delay))

	api.Dispatch(Requested{Section: route, Delay: act.Delay, Counter: counter, RequestID: id})
	n.setPhase(api, model.PhaseRequested)
}

func (n *Navigator) sync(api store.API) {
	route := n.Resolve(model.PathObject(n.bridge.Location().String()))
	counter := n.counter.Inc()
	id := uuid.NewString()
	n.logger.Debug("navigation sync",
		zap.String("request_id", id),
		zap.Int64("counter", counter),
		zap.String("path", route.FullPath))

	api.Dispatch(Requested{Section: route, Counter: counter, RequestID: id, Sync: true})
	n.setPhase(api, model.PhaseRequested)
}

func (n *Navigator) checkPermission(api store.API, act Requested) {
	allowed := Allowed{
		Section:   act.Section,
		Delay:     act.Delay,
		Counter:   act.Counter,
		RequestID: act.RequestID,
		Sync:      act.Sync,
	}
	if act.Sync {
		api.Dispatch(allowed)
		return
	}

	decision := newDecision(
		func() {
			if n.stale(act.Counter, act.RequestID, "permission") {
				return
			}
			api.Dispatch(allowed)
		},
		func() {
			if n.stale(act.Counter, act.RequestID, "permission") {
				return
			}
			api.Dispatch(Denied{Section: act.Section, Counter: act.Counter})
		},
	)
	n.permission(act.Section.Clone(), decision)
}

func (n *Navigator) allowed(api store.API, act Allowed) {
	if !act.Sync && n.stale(act.Counter, act.RequestID, "allowed") {
		return
	}
	n.setPhase(api, model.PhaseInProgress)

	var def model.Action = PushHistory{
		Section:   act.Section,
		Delay:     act.Delay,
		Counter:   act.Counter,
		RequestID: act.RequestID,
	}
	if act.Sync {
		def = Complete{Section: act.Section}
	}
	n.runStage(api, stageRun{
		stage:     model.StageBefore,
		route:     act.Section,
		defaults:  []model.Action{def},
		token:     act.Counter,
		requestID: act.RequestID,
		sync:      act.Sync,
	})
}

func (n *Navigator) push(api store.API, act PushHistory) {
	if act.Delay <= 0 {
		n.firePush(act)
		return
	}
	api.Go(func(ctx context.Context) (model.Action, error) {
		timer := time.NewTimer(act.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, nil
		case <-timer.C:
			return pushDue{push: act}, nil
		}
	})
}

func (n *Navigator) firePush(act PushHistory) {
	if act.Counter != 0 && n.stale(act.Counter, act.RequestID, "push") {
		return
	}
	n.bridge.Apply(act.Section.FullPath)
}

func (n *Navigator) complete(api store.API, act Complete) {
	gen := n.generation.Inc()
	n.logger.Debug("navigation complete",
		zap.String("path", act.Section.FullPath),
		zap.Bool("found", act.Section.PathFound),
		zap.Int64("generation", gen))

	n.setPhase(api, model.PhaseIdle)
	n.runStage(api, stageRun{stage: model.StageAfter, route: act.Section, token: gen})
}

// stale reports whether counter has been superseded, counting it if so.
func (n *Navigator) stale(counter int64, requestID, at string) bool {
	current := n.counter.Load()
	if current == counter {
		return false
	}
	n.metrics.Stale()
	n.logger.Debug("dropping stale navigation",
		zap.String("request_id", requestID),
		zap.String("at", at),
		zap.Int64("counter", counter),
		zap.Int64("current", current))
	return true
}

// setPhase moves to the given phase, passing through whatever intermediate
// phases keep the sequence Idle -> Requested -> (Idle | InProgress) -> Idle.
func (n *Navigator) setPhase(api store.API, to model.Phase) {
	from := model.Phase(n.phase.Load())

	var steps []model.Phase
	switch to {
	case model.PhaseRequested:
		if from != model.PhaseIdle {
			steps = append(steps, model.PhaseIdle)
		}
	case model.PhaseInProgress:
		if from == model.PhaseInProgress {
			steps = append(steps, model.PhaseIdle)
		}
		if from != model.PhaseRequested {
			steps = append(steps, model.PhaseRequested)
		}
	}
	steps = append(steps, to)

	for _, p := range steps {
		if p == from {
			continue
		}
		n.phase.Store(string(p))
		api.Dispatch(PhaseChanged{Phase: p})
		from = p
	}
}

func (n *Navigator) state(api store.API) any {
	if n.readState != nil {
		return n.readState()
	}
	return api.State()
}
