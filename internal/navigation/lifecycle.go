package navigation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"navkit/internal/model"
	"navkit/internal/store"
)

// HandlerError is reported to the store when a lifecycle handler fails.
type HandlerError struct {
	Stage     model.Stage
	Path      string
	RequestID string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("navigation: %s handler for %q failed: %v", e.Stage, e.Path, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

type stageRun struct {
	stage     model.Stage
	route     model.ResolvedRoute
	defaults  []model.Action
	token     int64
	requestID string
	sync      bool
}

// runStage invokes the route's handler for one stage. Without a handler the
// defaults settle immediately; otherwise the handler runs as a store command.
func (n *Navigator) runStage(api store.API, run stageRun) {
	settled := stageSettled{
		stage:     run.stage,
		route:     run.route,
		token:     run.token,
		requestID: run.requestID,
		sync:      run.sync,
	}

	handler := run.route.Handler
	if handler == nil {
		settled.actions = run.defaults
		n.settle(api, settled)
		return
	}

	state := n.state(api)
	route := run.route.Clone()
	api.Go(func(ctx context.Context) (model.Action, error) {
		start := time.Now()
		out, err := callHandler(ctx, handler, route, run.stage, state)
		n.metrics.ObserveHandler(run.stage, time.Since(start), err)

		if err != nil {
			settled.failed = true
			return settled, &HandlerError{
				Stage:     run.stage,
				Path:      route.FullPath,
				RequestID: run.requestID,
				Err:       err,
			}
		}
		settled.actions = stageActions(out, run.defaults)
		return settled, nil
	})
}

func callHandler(ctx context.Context, h model.LifecycleHandler, route model.ResolvedRoute, stage model.Stage, state any) (out model.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, route, stage, state)
}

// stageActions combines a handler outcome with the stage defaults.
//
// Nothing keeps the defaults. An interception gets exactly what it returns.
// A plain action list follows the defaults, unless it contains a navigation
// request, in which case the handler has redirected and the defaults are dropped.
func stageActions(out model.Outcome, defaults []model.Action) []model.Action {
	switch {
	case out.IsZero():
		return defaults
	case out.IsIntercept():
		return out.Apply(defaults)
	}

	actions := out.ActionList()
	if redirects(actions) {
		return actions
	}
	return append(append([]model.Action(nil), defaults...), actions...)
}

func redirects(actions []model.Action) bool {
	for _, a := range actions {
		switch a.(type) {
		case PreRequest, *PreRequest:
			return true
		}
	}
	return false
}

// settle runs on the dispatch loop once a stage's actions are known.
func (n *Navigator) settle(api store.API, s stageSettled) {
	switch s.stage {
	case model.StageBefore:
		if !s.sync && n.stale(s.token, s.requestID, "before") {
			return
		}
	case model.StageAfter:
		if gen := n.generation.Load(); gen != s.token {
			n.logger.Debug("dropping after-stage result",
				zap.String("path", s.route.FullPath),
				zap.Int64("generation", s.token),
				zap.Int64("current", gen))
			return
		}
	}

	if s.failed {
		if s.stage == model.StageBefore {
			n.setPhase(api, model.PhaseIdle)
		}
		return
	}

	for _, a := range s.actions {
		api.Dispatch(a)
	}
}
