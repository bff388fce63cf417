package navigation

import (
	"time"

	"navkit/internal/model"
)

// Action types. The strings are part of the wire contract.
const (
	TypePreRequest   = "NAVIGATION_PRE_REQUEST"
	TypeRequested    = "NAVIGATION_REQUESTED"
	TypeAction       = "NAVIGATION_ACTION"
	TypeDenied       = "NAVIGATION_DENIED"
	TypeAllowed      = "NAVIGATION_ALLOWED"
	TypePushHistory  = "NAVIGATION_PUSH_HISTORY"
	TypeComplete     = "NAVIGATION_COMPLETE"
	TypePhaseChanged = "NAVIGATION_PHASE_CHANGED"
	TypeSync         = "NAVIGATION_SYNC"
)

// PreRequest is a navigation intent. Handlers return one to redirect.
type PreRequest struct {
	Search model.Search  `json:"search"`
	Delay  time.Duration `json:"delay"`
}

func (PreRequest) ActionType() string { return TypePreRequest }

// Requested carries an attempt that is waiting for permission.
type Requested struct {
	Section   model.ResolvedRoute `json:"section"`
	Delay     time.Duration       `json:"delay"`
	Counter   int64               `json:"counter"`
	RequestID string              `json:"requestId"`
	Sync      bool                `json:"sync,omitempty"`
}

func (Requested) ActionType() string { return TypeRequested }

// ActionInvoked is dispatched for action-only routes ("action::NAME").
type ActionInvoked struct {
	NavigationAction string              `json:"navigationAction"`
	Section          model.ResolvedRoute `json:"section"`
}

func (ActionInvoked) ActionType() string { return TypeAction }

// Denied reports a refused attempt.
type Denied struct {
	Section model.ResolvedRoute `json:"section"`
	Counter int64               `json:"counter,omitempty"`
}

func (Denied) ActionType() string { return TypeDenied }

// Allowed reports a permitted attempt; its BEFORE stage runs next.
type Allowed struct {
	Section   model.ResolvedRoute `json:"section"`
	Delay     time.Duration       `json:"delay"`
	Counter   int64               `json:"counter"`
	RequestID string              `json:"requestId"`
	Sync      bool                `json:"sync,omitempty"`
}

func (Allowed) ActionType() string { return TypeAllowed }

// PushHistory is the default BEFORE-stage action: write the route to history.
// A zero Counter marks a push that did not come from a tracked attempt.
type PushHistory struct {
	Section   model.ResolvedRoute `json:"section"`
	Delay     time.Duration       `json:"delay"`
	Counter   int64               `json:"counter"`
	RequestID string              `json:"requestId"`
}

func (PushHistory) ActionType() string { return TypePushHistory }

// Complete is dispatched whenever history reports a location.
type Complete struct {
	Section model.ResolvedRoute `json:"section"`
}

func (Complete) ActionType() string { return TypeComplete }

// PhaseChanged reports a phase transition.
type PhaseChanged struct {
	Phase model.Phase `json:"phase"`
}

func (PhaseChanged) ActionType() string { return TypePhaseChanged }

// Sync reconciles the state with the current history location.
type Sync struct{}

func (Sync) ActionType() string { return TypeSync }

// Navigate requests navigation to search.
func Navigate(search model.Search) PreRequest {
	return PreRequest{Search: search}
}

// NavigateAfter is Navigate with the history push deferred by delay.
func NavigateAfter(search model.Search, delay time.Duration) PreRequest {
	return PreRequest{Search: search, Delay: delay}
}

// NavigateTo is Navigate(model.PathString(path)).
func NavigateTo(path string) PreRequest {
	return Navigate(model.PathString(path))
}

// SyncNavigation reconciles with the current location, bypassing permission.
func SyncNavigation() Sync {
	return Sync{}
}

// Helpers for handlers, so they need not import model for the common cases.
var (
	Intercept = model.Intercept
	Actions   = model.Actions
)

// internal actions, swallowed by the middleware.

// stageSettled carries a lifecycle handler's result back onto the dispatch loop.
type stageSettled struct {
	stage     model.Stage
	route     model.ResolvedRoute
	token     int64 // request counter (BEFORE) or completion generation (AFTER)
	requestID string
	sync      bool
	failed    bool
	actions   []model.Action
}

func (stageSettled) ActionType() string { return "navigation/stage-settled" }

// pushDue fires when a delayed push's timer expires.
type pushDue struct {
	push PushHistory
}

func (pushDue) ActionType() string { return "navigation/push-due" }
