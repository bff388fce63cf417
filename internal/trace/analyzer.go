package trace

import (
	"fmt"

	"navkit/internal/model"
	"navkit/internal/navigation"
)

// Attempt outcomes.
const (
	OutcomeCompleted  = "completed"
	OutcomeDenied     = "denied"
	OutcomeStale      = "stale"      // superseded while waiting for permission
	OutcomeSuperseded = "superseded" // superseded after permission, before history changed
	OutcomeAction     = "action"
	OutcomePending    = "pending"
)

// Analyzer groups a session journal into navigation attempts.
type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze reconstructs the attempts behind events. final is the navigation
// state at the end of the journal.
func (a *Analyzer) Analyze(events []model.TraceEvent, final model.NavigationState) model.AnalysisResult {
	var attempts []model.AttemptNode
	counters := map[int]int64{}   // attempt index -> request counter
	byCounter := map[int64]int{}  // request counter -> attempt index
	unmatched := map[int]string{} // attempt index -> path that matched no route
	var awaiting []int            // attempts started but not yet numbered, oldest first
	inFlight := -1                // the allowed attempt waiting for its completion

	start := func(origin, target string) int {
		attempts = append(attempts, model.AttemptNode{
			ID:      fmt.Sprintf("attempt-%d", len(attempts)+1),
			Origin:  origin,
			Target:  target,
			Outcome: OutcomePending,
		})
		return len(attempts) - 1
	}
	attach := func(idx, event int) {
		attempts[idx].Events = append(attempts[idx].Events, event)
	}

	for i, ev := range events {
		switch ev.Type {
		case navigation.TypePreRequest:
			idx := start("navigate", ev.Search)
			attach(idx, i)
			awaiting = append(awaiting, idx)

		case navigation.TypeSync:
			idx := start("sync", "")
			attach(idx, i)
			awaiting = append(awaiting, idx)

		case navigation.TypeAction:
			// Action-only routes never get a request number; they answer the
			// oldest unnumbered pre-request.
			var idx int
			if len(awaiting) > 0 {
				idx = awaiting[0]
				awaiting = awaiting[1:]
			} else {
				idx = start("action", ev.Path)
			}
			attempts[idx].Origin = "action"
			attempts[idx].Target = ev.Path
			attempts[idx].Outcome = OutcomeAction
			attach(idx, i)

		case navigation.TypeRequested:
			if len(awaiting) == 0 {
				continue
			}
			idx := awaiting[0]
			awaiting = awaiting[1:]
			counters[idx] = ev.Counter
			byCounter[ev.Counter] = idx
			if attempts[idx].Target == "" {
				attempts[idx].Target = ev.Path
			}
			attach(idx, i)

		case navigation.TypeDenied:
			if idx, ok := byCounter[ev.Counter]; ok {
				attempts[idx].Outcome = OutcomeDenied
				attach(idx, i)
			}

		case navigation.TypeAllowed:
			idx, ok := byCounter[ev.Counter]
			if !ok {
				continue
			}
			if inFlight >= 0 && inFlight != idx && attempts[inFlight].Outcome == OutcomePending {
				attempts[inFlight].Outcome = OutcomeSuperseded
			}
			inFlight = idx
			attach(idx, i)

		case navigation.TypePushHistory:
			if idx, ok := byCounter[ev.Counter]; ok {
				attach(idx, i)
			}

		case navigation.TypeComplete:
			var idx int
			if inFlight >= 0 && attempts[inFlight].Outcome == OutcomePending {
				idx = inFlight
				inFlight = -1
			} else {
				idx = start("external", ev.Path)
			}
			attempts[idx].Outcome = OutcomeCompleted
			attempts[idx].Target = ev.Path
			if !ev.PathFound {
				unmatched[idx] = ev.Path
			}
			attach(idx, i)
		}
	}

	// Numbered attempts still pending below the last issued number never will proceed.
	var last int64
	for _, c := range counters {
		if c > last {
			last = c
		}
	}
	for idx := range attempts {
		if attempts[idx].Outcome != OutcomePending {
			continue
		}
		if c, ok := counters[idx]; ok && c < last {
			attempts[idx].Outcome = OutcomeStale
		}
	}

	for i := range attempts {
		attempts[i].Order = i + 1
	}

	return model.AnalysisResult{
		Events:      events,
		Attempts:    attempts,
		FinalState:  final,
		Diagnostics: diagnose(attempts, counters, unmatched, final),
	}
}

func diagnose(attempts []model.AttemptNode, counters map[int]int64, unmatched map[int]string, final model.NavigationState) []string {
	var out []string
	for i, at := range attempts {
		switch at.Outcome {
		case OutcomeDenied:
			out = append(out, fmt.Sprintf("Navigation to %s was denied by the permission check (%s).", at.Target, at.ID))
		case OutcomeStale:
			out = append(out, fmt.Sprintf(
				"Request #%d for %s was superseded by a newer request before permission was granted.",
				counters[i], at.Target))
		case OutcomeSuperseded:
			out = append(out, fmt.Sprintf(
				"Request #%d for %s was superseded after permission; history was never updated for it.",
				counters[i], at.Target))
		}
		if p, ok := unmatched[i]; ok {
			out = append(out, fmt.Sprintf("Path %s matched no registered route.", p))
		}
	}
	if final.Phase != model.PhaseIdle && final.Phase != "" {
		out = append(out, fmt.Sprintf("Navigation did not settle: phase is %s.", final.Phase))
	}
	return out
}
