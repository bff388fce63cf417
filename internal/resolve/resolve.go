// Package resolve maps navigation input onto the route table.
//
// Resolution is pure: it reads only the slice of definitions it is given, so a
// caller that passes a table snapshot gets a stable result even if the table
// changes while it runs.
package resolve

import (
	"net/url"
	"strings"

	"navkit/internal/model"
)

// ActionSeparator marks action-only paths ("action::logout").
const ActionSeparator = "::"

// IsActionPath reports whether p addresses an action-only route.
func IsActionPath(p string) bool {
	return strings.Contains(p, ActionSeparator)
}

// ActionName extracts the lower-cased, unescaped NAME from "action::NAME";
// a trailing query is not part of the name.
func ActionName(p string) string {
	i := strings.Index(p, ActionSeparator)
	if i < 0 {
		return ""
	}
	name, _, _ := strings.Cut(p[i+len(ActionSeparator):], "?")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return strings.ToLower(name)
}

// Normalize lower-cases action paths; other paths get a leading "/" and lose
// trailing slashes (the root stays "/").
func Normalize(p string) string {
	if IsActionPath(p) {
		return strings.ToLower(p)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// ParseQuery parses "a=1&b&a=2". A bare key reads as true; a repeated key
// becomes a list and keeps growing on further repeats.
func ParseQuery(qs string) map[string]model.QueryValue {
	params := make(map[string]model.QueryValue)
	if qs == "" {
		return params
	}
	for _, pair := range strings.Split(qs, "&") {
		if pair == "" {
			continue
		}
		var (
			key string
			val model.QueryValue
		)
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = unescape(pair[:i])
			val = model.QueryString(unescape(pair[i+1:]))
		} else {
			key = unescape(pair)
			val = model.QueryFlag()
		}
		if existing, ok := params[key]; ok {
			params[key] = existing.Append(val)
			continue
		}
		params[key] = val
	}
	return params
}

func unescape(s string) string {
	if out, err := url.QueryUnescape(s); err == nil {
		return out
	}
	return s
}

// split separates "path?query#fragment".
func split(raw string) (path, query, fragment string) {
	path = raw
	if i := strings.IndexByte(path, '#'); i >= 0 {
		fragment = path[i+1:]
		path = path[:i]
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		query = path[i+1:]
		path = path[:i]
	}
	return path, query, fragment
}

// match tries the three strategies against one definition, in priority order:
// exact pattern, title alias, positional segments. override is set for title
// matches so the canonical pattern replaces the typed alias.
func match(def model.RouteDefinition, path string) (ok bool, params map[string]string, override string) {
	pattern := Normalize(def.Path)

	if strings.EqualFold(path, pattern) {
		return true, map[string]string{}, ""
	}

	if def.Title != "" && strings.EqualFold(path, "/"+def.Title) {
		return true, map[string]string{}, def.Path
	}

	want := strings.Split(pattern, "/")
	got := strings.Split(path, "/")
	if len(want) != len(got) {
		return false, nil, ""
	}
	params = make(map[string]string)
	for i, seg := range want {
		if strings.HasPrefix(seg, ":") {
			params[seg[1:]] = got[i]
			continue
		}
		if !strings.EqualFold(seg, got[i]) {
			return false, nil, ""
		}
	}
	return true, params, ""
}

// Resolve matches search against routes in order; the first match wins.
// Unmatched input resolves to a passthrough route with PathFound=false.
// Path carries the query string; only FullPath carries the fragment.
func Resolve(routes []model.RouteDefinition, search model.Search) model.ResolvedRoute {
	rawPath, query, fragment := split(search.Path)
	path := Normalize(rawPath)
	if !search.Structured {
		fragment = ""
	}

	for _, def := range routes {
		ok, params, override := match(def, path)
		if !ok {
			continue
		}
		base := path
		if override != "" {
			base = override
		}
		route := model.ResolvedRoute{
			RouteDefinition: def,
			FullPath:        fullPath(base, query, fragment),
			QueryString:     query,
			QueryParams:     ParseQuery(query),
			PathParams:      params,
			PathPattern:     def.Path,
			PathFound:       true,
			Fragment:        fragment,
		}
		route.Path = fullPath(base, query, "")
		return route
	}

	return model.ResolvedRoute{
		RouteDefinition: model.RouteDefinition{Path: fullPath(path, query, "")},
		FullPath:        fullPath(path, query, fragment),
		QueryString:     query,
		QueryParams:     ParseQuery(query),
		PathParams:      map[string]string{},
		PathPattern:     path,
		PathFound:       false,
		Fragment:        fragment,
	}
}

func fullPath(base, query, fragment string) string {
	out := base
	if query != "" {
		out += "?" + query
	}
	if fragment != "" {
		out += "#" + fragment
	}
	return out
}
