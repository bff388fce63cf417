package navigation

import (
	"strings"

	"navkit/internal/model"
)

// InitialState is the idle state with sections built from the current table.
func (n *Navigator) InitialState() model.NavigationState {
	s := model.InitialNavigationState()
	s.Sections = Sections(n.table.Snapshot(), "")
	return s
}

// Reduce applies navigation actions to the navigation slice. The phase only
// changes through PhaseChanged; sections are rebuilt on every completion.
func (n *Navigator) Reduce(state model.NavigationState, a model.Action) model.NavigationState {
	switch act := a.(type) {
	case PhaseChanged:
		state.Phase = act.Phase

	case Complete:
		r := act.Section.Clone()
		state.Path = r.Path
		state.FullPath = r.FullPath
		state.PathPattern = r.PathPattern
		state.Title = r.Title
		state.QueryParams = r.QueryParams
		state.PathParams = r.PathParams
		state.PathFound = r.PathFound
		state.Sections = Sections(n.table.Snapshot(), r.Path)
	}
	return state
}

// Sections lists the visible definitions, re-indexed in table order. A section
// is active when current starts with its path, ignoring case.
func Sections(defs []model.RouteDefinition, current string) []model.Section {
	lower := strings.ToLower(current)
	sections := make([]model.Section, 0, len(defs))
	for _, def := range defs {
		if def.Visibility != model.Visible {
			continue
		}
		sections = append(sections, model.Section{
			Title:  def.Title,
			Icon:   def.Icon,
			Path:   def.Path,
			Index:  len(sections),
			Active: current != "" && strings.HasPrefix(lower, strings.ToLower(def.Path)),
		})
	}
	return sections
}
