package model

import "time"

// Version is the navkit release.
const Version = "0.4.0"

// TraceEvent is one dispatched action as seen by the journal recorder.
type TraceEvent struct {
	Seq       int       // Dispatch order, starting at 1
	Type      string    // Action type, e.g. NAVIGATION_COMPLETE
	Path      string    // Section path carried by the action, if any
	Search    string    // Raw search for pre-requests
	Counter   int64     // Request counter for NAVIGATION_REQUESTED
	Phase     Phase     // Phase after the action was reduced
	PathFound bool      // For completions: whether the path matched a route
	At        time.Time // When it was recorded
}

// AttemptNode groups the events belonging to one navigation attempt.
type AttemptNode struct {
	ID      string // e.g. "attempt-1"
	Origin  string // "navigate", "sync", "external" or "action"
	Target  string // Requested search or completed path
	Outcome string // completed, denied, stale, superseded, action or pending
	Order   int    // Sequence order (1, 2, 3...)
	Events  []int  // Indices into AnalysisResult.Events
}

// AnalysisResult contains the processed journal of a session.
type AnalysisResult struct {
	Events      []TraceEvent
	Attempts    []AttemptNode
	FinalState  NavigationState
	Diagnostics []string
}
