package session

import (
	"context"
	"net/url"

	"navkit/internal/model"
	"navkit/internal/navigation"
	"navkit/internal/routes"
)

// AuditLogged records that an audited route passed a lifecycle stage.
type AuditLogged struct {
	Seq   int         `json:"seq"`
	Stage model.Stage `json:"stage"`
	Path  string      `json:"path"`
}

func (AuditLogged) ActionType() string { return "AUDIT_LOGGED" }

// DemoHandlers are the handlers demo routes and route files can name.
//
//	audit   appends an AuditLogged after the BEFORE and AFTER defaults
//	guard   redirects to /login unless the query carries a token
//	legacy  redirects to /dashboard
//	logout  runs the action and then navigates to /login
func DemoHandlers() routes.HandlerSet {
	return routes.HandlerSet{
		"audit":  auditHandler,
		"guard":  guardHandler,
		"legacy": legacyHandler,
		"logout": logoutHandler,
	}
}

func auditHandler(_ context.Context, route model.ResolvedRoute, stage model.Stage, state any) (model.Outcome, error) {
	if stage == model.StageAction {
		return model.Outcome{}, nil
	}
	seq := 1
	if st, ok := state.(State); ok {
		seq = len(st.Audit) + 1
	}
	entry := AuditLogged{Seq: seq, Stage: stage, Path: route.FullPath}
	return navigation.Intercept(func(defaults []model.Action) []model.Action {
		return append(defaults, entry)
	}), nil
}

func guardHandler(_ context.Context, route model.ResolvedRoute, stage model.Stage, _ any) (model.Outcome, error) {
	if stage != model.StageBefore {
		return model.Outcome{}, nil
	}
	if _, ok := route.QueryParams["token"]; ok {
		return model.Outcome{}, nil
	}
	return navigation.Actions(navigation.NavigateTo("/login?next=" + url.QueryEscape(route.FullPath))), nil
}

func legacyHandler(_ context.Context, _ model.ResolvedRoute, stage model.Stage, _ any) (model.Outcome, error) {
	if stage != model.StageBefore {
		return model.Outcome{}, nil
	}
	return navigation.Actions(navigation.NavigateTo("/dashboard")), nil
}

func logoutHandler(_ context.Context, _ model.ResolvedRoute, stage model.Stage, _ any) (model.Outcome, error) {
	if stage != model.StageAction {
		return model.Outcome{}, nil
	}
	return navigation.Intercept(func(defaults []model.Action) []model.Action {
		return append(defaults, navigation.NavigateTo("/login"))
	}), nil
}

// DemoRoutes is the route table used when no route file is given.
func DemoRoutes() []model.RouteDefinition {
	h := DemoHandlers()
	return []model.RouteDefinition{
		{Title: "Home", Path: "/", Visibility: model.Hidden},
		{Title: "Dashboard", Icon: "◆", Path: "/dashboard"},
		{Title: "Reports", Icon: "▤", Path: "/reports"},
		{Title: "Report", Path: "/reports/:year/:month", Visibility: model.Hidden},
		{Title: "Users", Icon: "☺", Path: "/users"},
		{Title: "User", Path: "/users/:id", Visibility: model.Hidden},
		{Title: "Settings", Icon: "⚙", Path: "/settings", Handler: h["audit"], HandlerName: "audit"},
		{Title: "Admin", Icon: "★", Path: "/admin", Handler: h["guard"], HandlerName: "guard"},
		{Title: "Login", Path: "/login", Visibility: model.Hidden},
		{Title: "Old dashboard", Path: "/old-dashboard", Visibility: model.Hidden, Handler: h["legacy"], HandlerName: "legacy"},
		{Title: "Log out", Path: "action::logout", Visibility: model.Hidden, Handler: h["logout"], HandlerName: "logout"},
	}
}
