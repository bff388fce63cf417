package resolve

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"navkit/internal/model"
)

func testRoutes() []model.RouteDefinition {
	return []model.RouteDefinition{
		{Title: "Visible", Path: "/visible"},
		{Title: "Item", Path: "/visible/:id"},
		{Title: "Hidden", Path: "/hidden", Visibility: model.Hidden},
		{Title: "Home", Path: "/"},
		{Title: "Logout", Path: "action::logout", Visibility: model.Hidden},
		{Title: "Report", Path: "/reports/:year/:month"},
	}
}

func TestResolve_LiteralRoutes(t *testing.T) {
	for _, r := range testRoutes() {
		if IsActionPath(r.Path) || strings.Contains(r.Path, "/:") {
			continue
		}
		t.Run(r.Path, func(t *testing.T) {
			got := Resolve([]model.RouteDefinition{r}, model.PathString(r.Path))
			assert.True(t, got.PathFound)
			assert.Equal(t, Normalize(r.Path), got.Path)
		})
	}
}

func TestResolve_PathParams(t *testing.T) {
	got := Resolve(testRoutes(), model.PathString("/visible/123"))

	require.True(t, got.PathFound)
	assert.Equal(t, "123", got.PathParams["id"])
	assert.Equal(t, "/visible/:id", got.PathPattern)
	assert.Equal(t, "/visible/123", got.Path)
	assert.Equal(t, "Item", got.Title)
}

func TestResolve_MultipleParamsVerbatim(t *testing.T) {
	got := Resolve(testRoutes(), model.PathString("/reports/2024/a%20b"))

	require.True(t, got.PathFound)
	assert.Equal(t, map[string]string{"year": "2024", "month": "a%20b"}, got.PathParams)
}

func TestResolve_SegmentMismatchFallsThrough(t *testing.T) {
	got := Resolve(testRoutes(), model.PathString("/visible/123/extra"))
	assert.False(t, got.PathFound)

	got = Resolve(testRoutes(), model.PathString("/other/123"))
	assert.False(t, got.PathFound, "literal segments that differ never match")
}

func TestResolve_Unmatched(t *testing.T) {
	got := Resolve(testRoutes(), model.PathString("/does_not_exist"))

	assert.False(t, got.PathFound)
	assert.Equal(t, "/does_not_exist", got.Path)
	assert.Equal(t, "/does_not_exist", got.FullPath)
	assert.Equal(t, "/does_not_exist", got.PathPattern)
	assert.Empty(t, got.Title)
	assert.Empty(t, got.PathParams)

	got = Resolve(testRoutes(), model.PathString("/does_not_exist?a=1"))
	assert.Equal(t, "/does_not_exist?a=1", got.Path)
	assert.Equal(t, "/does_not_exist", got.PathPattern)
}

func TestResolve_Normalization(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"visible", "/visible"},
		{"/visible/", "/visible"},
		{"VISIBLE", "/VISIBLE"},
		{"", "/"},
		{"/", "/"},
		{"///", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Resolve(testRoutes(), model.PathString(tt.in))
			assert.True(t, got.PathFound)
			assert.Equal(t, tt.want, got.Path)
		})
	}
}

func TestResolve_TitleAlias(t *testing.T) {
	got := Resolve(testRoutes(), model.PathString("/home"))

	require.True(t, got.PathFound)
	assert.Equal(t, "/", got.Path, "alias resolves to the canonical pattern")
	assert.Equal(t, "/", got.PathPattern)
	assert.Equal(t, "Home", got.Title)
}

func TestResolve_FirstMatchWins(t *testing.T) {
	routes := []model.RouteDefinition{
		{Title: "First", Path: "/things/:id"},
		{Title: "Second", Path: "/things/new"},
	}
	got := Resolve(routes, model.PathString("/things/new"))
	assert.Equal(t, "First", got.Title)
	assert.Equal(t, "new", got.PathParams["id"])
}

func TestResolve_ActionPath(t *testing.T) {
	got := Resolve(testRoutes(), model.PathString("Action::LOGOUT"))

	require.True(t, got.PathFound)
	assert.Equal(t, "action::logout", got.Path)
	assert.Equal(t, "logout", ActionName(got.Path))
	assert.Equal(t, model.Hidden, got.Visibility)

	got = Resolve(testRoutes(), model.PathString("action::logout?now"))
	require.True(t, got.PathFound)
	assert.Equal(t, "action::logout?now", got.Path)
	assert.Equal(t, "logout", ActionName(got.Path))
}

func TestResolve_QueryAndFragment(t *testing.T) {
	got := Resolve(testRoutes(), model.PathString("/visible?foo=bar#top"))
	require.True(t, got.PathFound)
	assert.Equal(t, "/visible?foo=bar", got.Path)
	assert.Equal(t, "/visible?foo=bar", got.FullPath, "string input drops the fragment")
	assert.Equal(t, "foo=bar", got.QueryString)

	got = Resolve(testRoutes(), model.PathObject("/visible?foo=bar#top"))
	assert.Equal(t, "/visible?foo=bar#top", got.FullPath, "structured input keeps the fragment")
	assert.Equal(t, "top", got.Fragment)
}

func TestResolve_DoesNotAliasDefinition(t *testing.T) {
	routes := testRoutes()
	got := Resolve(routes, model.PathString("/visible/1?x=1"))
	got.Title = "changed"
	got.PathParams["id"] = "2"

	assert.Equal(t, "Item", routes[1].Title)
	again := Resolve(routes, model.PathString("/visible/1?x=1"))
	assert.Equal(t, "1", again.PathParams["id"])
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name string
		qs   string
		want string
	}{
		{"scalars and flag", "foo=bar&baz=bux&qaz", `{"baz":"bux","foo":"bar","qaz":true}`},
		{"repeat twice", "foo=bar&foo=baz", `{"foo":["bar","baz"]}`},
		{"repeat thrice", "foo=bar&foo=baz&foo=bip", `{"foo":["bar","baz","bip"]}`},
		{"flag then value", "foo&foo=bar", `{"foo":[true,"bar"]}`},
		{"escaped", "q=a%20b", `{"q":"a b"}`},
		{"empty pairs", "&&a=1&", `{"a":"1"}`},
		{"empty", "", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(ParseQuery(tt.qs))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestParseQuery_Values(t *testing.T) {
	params := ParseQuery("foo=bar&foo=baz&foo=bip&flag")

	foo := params["foo"]
	assert.True(t, foo.IsList())
	if diff := cmp.Diff([]string{"bar", "baz", "bip"}, foo.Strings()); diff != "" {
		t.Errorf("foo values mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, params["flag"].IsFlag())
	assert.Equal(t, "true", params["flag"].String())
}

func TestActionName(t *testing.T) {
	assert.Equal(t, "sign out", ActionName("action::Sign%20Out"))
	assert.Equal(t, "", ActionName("/plain"))
}
