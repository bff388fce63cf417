package model

// Phase is the observable navigation state machine:
// Idle -> Requested -> (Idle | InProgress) -> Idle.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseRequested  Phase = "REQUESTED"
	PhaseInProgress Phase = "IN_PROGRESS"
)

// Section is a visible route as exposed to the UI, re-indexed in table order.
type Section struct {
	Title  string `json:"title"`
	Icon   string `json:"icon"`
	Path   string `json:"path"`
	Index  int    `json:"index"`
	Active bool   `json:"active"` // current path starts with Path, case-insensitively
}

// NavigationState is the navigation slice of the application state.
type NavigationState struct {
	Phase       Phase                 `json:"phase"`
	Path        string                `json:"path"`
	FullPath    string                `json:"fullPath"`
	PathPattern string                `json:"pathPattern"`
	Title       string                `json:"title"`
	QueryParams map[string]QueryValue `json:"queryParams"`
	PathParams  map[string]string     `json:"pathParams"`
	PathFound   bool                  `json:"pathFound"`
	Sections    []Section             `json:"sections"`
}

// InitialNavigationState returns an idle state with no current route.
func InitialNavigationState() NavigationState {
	return NavigationState{
		Phase:       PhaseIdle,
		QueryParams: map[string]QueryValue{},
		PathParams:  map[string]string{},
	}
}

// ActiveSection returns the first active section, if any.
func (s NavigationState) ActiveSection() (Section, bool) {
	for _, sec := range s.Sections {
		if sec.Active {
			return sec, true
		}
	}
	return Section{}, false
}
