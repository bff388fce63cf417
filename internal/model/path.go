package model

// Visibility controls whether a route shows up in the section list exposed to the UI.
type Visibility int

const (
	Visible Visibility = iota
	Hidden
)

func (v Visibility) String() string {
	if v == Hidden {
		return "hidden"
	}
	return "visible"
}

// RouteDefinition is a registered route. It is never mutated after registration;
// re-registering the same path replaces it.
type RouteDefinition struct {
	Title      string     // Display title, also usable as an alias ("/" + title)
	Icon       string     // Icon shown next to the section (see icons.go)
	Path       string     // Pattern: "/visible/:id", "action::logout" or a literal path
	Visibility Visibility // Visible or Hidden
	Index      int        // Position within the initial registration batch

	// Handler runs at the ACTION, BEFORE and AFTER lifecycle stages. Optional.
	Handler LifecycleHandler `json:"-"`
	// HandlerName is the name the handler was looked up by when loaded from a route file.
	HandlerName string `json:",omitempty"`
}

// Search is a navigation input. String inputs lose any #fragment; structured
// inputs (the shape of a location object) keep it in the resolved FullPath.
type Search struct {
	Path       string
	Structured bool
}

// PathString builds a string-form search.
func PathString(path string) Search {
	return Search{Path: path}
}

// PathObject builds a structured search ({path: ...}).
func PathObject(path string) Search {
	return Search{Path: path, Structured: true}
}

// ResolvedRoute is the result of matching a Search against the route table.
// It owns copies of everything it carries and never aliases the registered definition.
type ResolvedRoute struct {
	RouteDefinition

	FullPath    string                // Path + "?" + query (+ "#" + fragment for structured input)
	QueryString string                // Raw query string without the leading "?"
	QueryParams map[string]QueryValue // Parsed query parameters
	PathParams  map[string]string     // Captured ":param" segments
	PathPattern string                // Pattern that matched, or the normalized input when nothing did
	PathFound   bool                  // False for the passthrough "unknown path" route
	Fragment    string                // Fragment without "#", structured inputs only
}

// Clone returns a deep copy of the route.
func (r ResolvedRoute) Clone() ResolvedRoute {
	out := r
	if r.QueryParams != nil {
		out.QueryParams = make(map[string]QueryValue, len(r.QueryParams))
		for k, v := range r.QueryParams {
			out.QueryParams[k] = v.Clone()
		}
	}
	if r.PathParams != nil {
		out.PathParams = make(map[string]string, len(r.PathParams))
		for k, v := range r.PathParams {
			out.PathParams[k] = v
		}
	}
	return out
}
