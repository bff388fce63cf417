package model

// Centralized icons for sections and phase markers
// Using simple single-width characters for consistent terminal rendering
const (
	IconActive     = "●" // Section containing the current path
	IconInactive   = "○" // Any other visible section
	IconHidden     = "◌" // Hidden route (only in verbose listings)
	IconAction     = "⚡" // Action-only route
	IconUnknown    = "✗" // Unmatched path
	IconRequested  = "…" // Phase: waiting for permission
	IconInProgress = "→" // Phase: history being updated
	IconIdle       = " " // Phase: settled (no icon to reduce noise)
	IconExternal   = "↗" // Link that falls through to the browser
)

// PhaseIcon returns the marker for a phase.
func PhaseIcon(p Phase) string {
	switch p {
	case PhaseRequested:
		return IconRequested
	case PhaseInProgress:
		return IconInProgress
	default:
		return IconIdle
	}
}
