package model

import "context"

// Action is a message on the action bus. ActionType returns the wire name,
// e.g. "NAVIGATION_COMPLETE".
type Action interface {
	ActionType() string
}

// Stage is the point in the navigation lifecycle at which a handler runs.
type Stage string

const (
	StageAction Stage = "ACTION" // action-only routes ("action::NAME")
	StageBefore Stage = "BEFORE" // after permission is granted, before history changes
	StageAfter  Stage = "AFTER"  // after the completion notification
)

// LifecycleHandler is attached to a route and called at each lifecycle stage.
// state is the current application state tree. A handler may block; it never
// runs on the dispatch loop.
type LifecycleHandler func(ctx context.Context, route ResolvedRoute, stage Stage, state any) (Outcome, error)

type outcomeKind int

const (
	outcomeNone outcomeKind = iota
	outcomeActions
	outcomeIntercept
)

// Outcome is what a lifecycle handler returns: nothing (the zero value), a list
// of actions, or an interception that rewrites the stage's default actions.
type Outcome struct {
	kind      outcomeKind
	actions   []Action
	intercept func(defaults []Action) []Action
}

// Actions returns an outcome dispatching the given actions. With no
// arguments it is equivalent to returning nothing.
func Actions(actions ...Action) Outcome {
	if len(actions) == 0 {
		return Outcome{}
	}
	return Outcome{kind: outcomeActions, actions: append([]Action(nil), actions...)}
}

// Intercept returns an outcome that receives the stage's default actions and
// returns the list to dispatch instead.
func Intercept(fn func(defaults []Action) []Action) Outcome {
	return Outcome{kind: outcomeIntercept, intercept: fn}
}

// IsZero reports whether the handler returned nothing.
func (o Outcome) IsZero() bool { return o.kind == outcomeNone }

// IsIntercept reports whether the outcome is an interception.
func (o Outcome) IsIntercept() bool { return o.kind == outcomeIntercept }

// ActionList returns the actions carried by an Actions outcome.
func (o Outcome) ActionList() []Action {
	return append([]Action(nil), o.actions...)
}

// Apply runs an interception against the default actions. For other outcomes
// it returns the defaults unchanged.
func (o Outcome) Apply(defaults []Action) []Action {
	if o.kind != outcomeIntercept || o.intercept == nil {
		return defaults
	}
	return o.intercept(append([]Action(nil), defaults...))
}
