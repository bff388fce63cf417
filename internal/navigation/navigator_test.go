package navigation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"navkit/internal/history"
	"navkit/internal/model"
	"navkit/internal/routes"
	"navkit/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type extra string

func (e extra) ActionType() string { return "EXTRA" }

type harness struct {
	t     *testing.T
	table *routes.Table
	hist  *history.Memory
	nav   *Navigator
	st    *store.Store[model.NavigationState]

	mu      sync.Mutex
	actions []model.Action
}

func newHarness(t *testing.T, initial string, defs []model.RouteDefinition, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		table: routes.NewTable(defs...),
		hist:  history.NewMemory(initial),
	}
	h.nav = New(h.table, h.hist, opts...)
	h.st = store.New(h.nav.InitialState(), h.nav.Reduce, store.WithMiddleware(h.nav.Middleware()))
	h.st.Subscribe(func(a model.Action, _ model.NavigationState) {
		h.mu.Lock()
		h.actions = append(h.actions, a)
		h.mu.Unlock()
	})
	t.Cleanup(func() {
		h.st.Close()
		h.nav.Close()
	})
	return h
}

func (h *harness) settle() error {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return h.st.Settle(ctx)
}

func (h *harness) types(only ...string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	keep := map[string]bool{}
	for _, o := range only {
		keep[o] = true
	}
	var out []string
	for _, a := range h.actions {
		if len(only) == 0 || keep[a.ActionType()] {
			out = append(out, a.ActionType())
		}
	}
	return out
}

func (h *harness) completes() []Complete {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Complete
	for _, a := range h.actions {
		if c, ok := a.(Complete); ok {
			out = append(out, c)
		}
	}
	return out
}

func (h *harness) phases() []model.Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := []model.Phase{model.PhaseIdle}
	for _, a := range h.actions {
		if pc, ok := a.(PhaseChanged); ok {
			out = append(out, pc.Phase)
		}
	}
	return out
}

// assertLegalPhases checks Idle -> Requested -> (Idle | InProgress) -> Idle.
func assertLegalPhases(t *testing.T, phases []model.Phase) {
	t.Helper()
	legal := map[model.Phase][]model.Phase{
		model.PhaseIdle:       {model.PhaseRequested},
		model.PhaseRequested:  {model.PhaseIdle, model.PhaseInProgress},
		model.PhaseInProgress: {model.PhaseIdle},
	}
	for i := 1; i < len(phases); i++ {
		assert.Contains(t, legal[phases[i-1]], phases[i], "illegal transition %s -> %s at %d", phases[i-1], phases[i], i)
	}
}

func visibleAndHidden() []model.RouteDefinition {
	return []model.RouteDefinition{
		{Title: "Visible", Path: "/visible"},
		{Title: "Hidden", Path: "/hidden", Visibility: model.Hidden},
	}
}

func TestSections_OnlyVisibleEntries(t *testing.T) {
	h := newHarness(t, "/", visibleAndHidden())

	assert.Equal(t, 2, h.table.Len())
	require.Len(t, h.st.State().Sections, 1)
	assert.Equal(t, "/visible", h.st.State().Sections[0].Path)

	h.st.Dispatch(NavigateTo("/hidden"))
	require.NoError(t, h.settle())
	assert.Len(t, h.st.State().Sections, 1)
}

func TestNavigate_AllowCompletesOnce(t *testing.T) {
	h := newHarness(t, "/", visibleAndHidden())

	h.st.Dispatch(NavigateTo("visible"))
	require.NoError(t, h.settle())

	completes := h.completes()
	require.Len(t, completes, 1)
	assert.Equal(t, "/visible", completes[0].Section.Path)
	assert.Equal(t, model.PhaseIdle, h.nav.Phase())
	assert.Equal(t, model.PhaseIdle, h.st.State().Phase)

	want := []string{
		TypePreRequest,
		TypeRequested,
		TypePhaseChanged,
		TypeAllowed,
		TypePhaseChanged,
		TypePushHistory,
		TypeComplete,
		TypePhaseChanged,
	}
	if diff := cmp.Diff(want, h.types()); diff != "" {
		t.Errorf("action sequence mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []model.Phase{model.PhaseIdle, model.PhaseRequested, model.PhaseInProgress, model.PhaseIdle}, h.phases())

	state := h.st.State()
	assert.Equal(t, "/visible", state.Path)
	assert.Equal(t, "Visible", state.Title)
	assert.True(t, state.PathFound)
	assert.Equal(t, "/visible", h.hist.Location().Pathname)
}

func TestNavigate_DenyNeverCompletes(t *testing.T) {
	h := newHarness(t, "/", visibleAndHidden(), WithPermission(DenyAll))

	h.st.Dispatch(NavigateTo("visible"))
	require.NoError(t, h.settle())

	assert.Empty(t, h.completes())
	assert.Equal(t, model.PhaseIdle, h.st.State().Phase)
	assert.Equal(t, []string{TypeDenied}, h.types(TypeDenied, TypePushHistory))
	assert.Equal(t, "/", h.hist.Location().Pathname, "history untouched")
	assertLegalPhases(t, h.phases())
}

func TestNavigate_InterceptAtBeforeAndAfter(t *testing.T) {
	var (
		mu     sync.Mutex
		stages []model.Stage
	)
	handler := func(ctx context.Context, route model.ResolvedRoute, stage model.Stage, state any) (model.Outcome, error) {
		mu.Lock()
		stages = append(stages, stage)
		mu.Unlock()
		return Intercept(func(actions []model.Action) []model.Action {
			return append(actions, extra(stage))
		}), nil
	}
	h := newHarness(t, "/", []model.RouteDefinition{{Title: "Visible", Path: "/visible", Handler: handler}})

	h.st.Dispatch(NavigateTo("/visible"))
	require.NoError(t, h.settle())

	got := h.types(TypePushHistory, TypeComplete, "EXTRA")
	assert.Equal(t, []string{TypePushHistory, "EXTRA", TypeComplete, "EXTRA"}, got)
	assert.Equal(t, []model.Stage{model.StageBefore, model.StageAfter}, stages)
	assert.Equal(t, model.PhaseIdle, h.st.State().Phase)
}

func TestNavigate_HandlerActionsFollowDefaults(t *testing.T) {
	handler := func(ctx context.Context, route model.ResolvedRoute, stage model.Stage, state any) (model.Outcome, error) {
		if stage == model.StageBefore {
			return Actions(extra("audit")), nil
		}
		return model.Outcome{}, nil
	}
	h := newHarness(t, "/", []model.RouteDefinition{{Title: "Visible", Path: "/visible", Handler: handler}})

	h.st.Dispatch(NavigateTo("/visible"))
	require.NoError(t, h.settle())

	assert.Equal(t, []string{TypePushHistory, "EXTRA", TypeComplete}, h.types(TypePushHistory, TypeComplete, "EXTRA"))
}

func TestNavigate_RedirectSuppressesDefaults(t *testing.T) {
	redirect := func(ctx context.Context, route model.ResolvedRoute, stage model.Stage, state any) (model.Outcome, error) {
		if stage == model.StageBefore {
			return Actions(NavigateTo("/other")), nil
		}
		return model.Outcome{}, nil
	}
	h := newHarness(t, "/", []model.RouteDefinition{
		{Title: "Visible", Path: "/visible", Handler: redirect},
		{Title: "Other", Path: "/other"},
	})

	h.st.Dispatch(NavigateTo("/visible"))
	require.NoError(t, h.settle())

	completes := h.completes()
	require.Len(t, completes, 1)
	assert.Equal(t, "/other", completes[0].Section.Path)
	assert.Len(t, h.types(TypePushHistory), 1, "the original push is suppressed")
	assert.Equal(t, model.PhaseIdle, h.st.State().Phase)
	assertLegalPhases(t, h.phases())
}

func TestNavigate_InterceptedRedirectKeepsDefaults(t *testing.T) {
	handler := func(ctx context.Context, route model.ResolvedRoute, stage model.Stage, state any) (model.Outcome, error) {
		if stage != model.StageBefore {
			return model.Outcome{}, nil
		}
		return Intercept(func(actions []model.Action) []model.Action {
			return append(actions, NavigateTo("/other"))
		}), nil
	}
	h := newHarness(t, "/", []model.RouteDefinition{
		{Title: "Visible", Path: "/visible", Handler: handler},
		{Title: "Other", Path: "/other"},
	})

	h.st.Dispatch(NavigateTo("/visible"))
	require.NoError(t, h.settle())

	completes := h.completes()
	require.Len(t, completes, 2)
	assert.Equal(t, "/visible", completes[0].Section.Path)
	assert.Equal(t, "/other", completes[1].Section.Path)
	assertLegalPhases(t, h.phases())
}

func TestSync_TwiceCompletesTwice(t *testing.T) {
	h := newHarness(t, "/visible?tab=1", visibleAndHidden())

	h.st.Dispatch(SyncNavigation())
	h.st.Dispatch(SyncNavigation())
	require.NoError(t, h.settle())

	completes := h.completes()
	require.Len(t, completes, 2)
	assert.Equal(t, "/visible", completes[0].Section.Path)
	assert.Equal(t, completes[0].Section.Path, completes[1].Section.Path)
	assert.Equal(t, "tab=1", completes[1].Section.QueryString)

	assert.Empty(t, h.types(TypePushHistory), "sync never writes history")
	entries, _ := h.hist.Entries()
	assert.Len(t, entries, 1)
	assert.Equal(t, model.PhaseIdle, h.st.State().Phase)
	assertLegalPhases(t, h.phases())
}

func TestSync_RunsBeforeHandler(t *testing.T) {
	called := make(chan model.Stage, 4)
	handler := func(ctx context.Context, route model.ResolvedRoute, stage model.Stage, state any) (model.Outcome, error) {
		called <- stage
		return model.Outcome{}, nil
	}
	h := newHarness(t, "/visible", []model.RouteDefinition{{Title: "Visible", Path: "/visible", Handler: handler}})

	h.st.Dispatch(SyncNavigation())
	require.NoError(t, h.settle())

	close(called)
	var stages []model.Stage
	for s := range called {
		stages = append(stages, s)
	}
	assert.Equal(t, []model.Stage{model.StageBefore, model.StageAfter}, stages)
	assert.Len(t, h.completes(), 1)
}

func TestNavigate_LastRequestWins(t *testing.T) {
	var (
		mu        sync.Mutex
		decisions []Decision
	)
	deferred := func(route model.ResolvedRoute, d Decision) {
		mu.Lock()
		decisions = append(decisions, d)
		mu.Unlock()
	}
	h := newHarness(t, "/", []model.RouteDefinition{
		{Title: "A", Path: "/a"},
		{Title: "B", Path: "/b"},
	}, WithPermission(deferred))

	h.st.Dispatch(NavigateTo("/a"))
	h.st.Dispatch(NavigateTo("/b"))
	require.Len(t, decisions, 2)

	decisions[0].Allow()
	decisions[0].Deny()
	require.NoError(t, h.settle())
	assert.Empty(t, h.completes(), "stale request never proceeds")
	assert.Empty(t, h.types(TypeDenied, TypeAllowed))
	assert.Equal(t, model.PhaseRequested, h.nav.Phase())

	decisions[1].Allow()
	decisions[1].Allow()
	require.NoError(t, h.settle())

	completes := h.completes()
	require.Len(t, completes, 1)
	assert.Equal(t, "/b", completes[0].Section.Path)
	assert.Equal(t, model.PhaseIdle, h.st.State().Phase)
	assertLegalPhases(t, h.phases())
}

func TestSync_SupersedesPendingNavigation(t *testing.T) {
	var pending []Decision
	deferred := func(_ model.ResolvedRoute, d Decision) { pending = append(pending, d) }
	h := newHarness(t, "/", []model.RouteDefinition{
		{Title: "Home", Path: "/"},
		{Title: "A", Path: "/a"},
	}, WithPermission(deferred))

	h.st.Dispatch(NavigateTo("/a"))
	h.st.Dispatch(SyncNavigation())
	require.NoError(t, h.settle())
	require.Len(t, pending, 1, "sync skips the permission check")

	pending[0].Allow()
	require.NoError(t, h.settle())

	completes := h.completes()
	require.Len(t, completes, 1)
	assert.Equal(t, "/", completes[0].Section.Path)
	assert.Len(t, h.types(TypeAllowed), 1, "only the sync is allowed")
	assert.Equal(t, model.PhaseIdle, h.st.State().Phase)
	assertLegalPhases(t, h.phases())
}

func TestNavigate_SlowBeforeHandlerGoesStale(t *testing.T) {
	release := make(chan struct{})
	slow := func(ctx context.Context, route model.ResolvedRoute, stage model.Stage, state any) (model.Outcome, error) {
		if stage == model.StageBefore {
			<-release
		}
		return model.Outcome{}, nil
	}
	h := newHarness(t, "/", []model.RouteDefinition{
		{Title: "Slow", Path: "/slow", Handler: slow},
		{Title: "Fast", Path: "/fast"},
	})

	h.st.Dispatch(NavigateTo("/slow"))
	h.st.Dispatch(NavigateTo("/fast"))
	close(release)
	require.NoError(t, h.settle())

	completes := h.completes()
	require.Len(t, completes, 1)
	assert.Equal(t, "/fast", completes[0].Section.Path)
	assert.Equal(t, "/fast", h.hist.Location().Pathname)
	assertLegalPhases(t, h.phases())
}

func TestNavigate_HandlerErrorReturnsToIdle(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		handler model.LifecycleHandler
	}{
		{"error", func(ctx context.Context, route model.ResolvedRoute, stage model.Stage, state any) (model.Outcome, error) {
			return model.Outcome{}, boom
		}},
		{"panic", func(ctx context.Context, route model.ResolvedRoute, stage model.Stage, state any) (model.Outcome, error) {
			panic("kaboom")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "/", []model.RouteDefinition{{Title: "Boom", Path: "/boom", Handler: tt.handler}})

			h.st.Dispatch(NavigateTo("/boom"))
			err := h.settle()
			require.Error(t, err)

			var he *HandlerError
			require.True(t, errors.As(err, &he))
			assert.Equal(t, model.StageBefore, he.Stage)
			assert.Equal(t, "/boom", he.Path)
			if tt.name == "error" {
				assert.ErrorIs(t, err, boom)
			}

			assert.Empty(t, h.completes())
			assert.Equal(t, model.PhaseIdle, h.st.State().Phase)
			assertLegalPhases(t, h.phases())
		})
	}
}

func TestNavigate_AfterHandlerErrorIsReported(t *testing.T) {
	handler := func(ctx context.Context, route model.ResolvedRoute, stage model.Stage, state any) (model.Outcome, error) {
		if stage == model.StageAfter {
			return model.Outcome{}, errors.New("after failed")
		}
		return model.Outcome{}, nil
	}
	h := newHarness(t, "/", []model.RouteDefinition{{Title: "Visible", Path: "/visible", Handler: handler}})

	h.st.Dispatch(NavigateTo("/visible"))
	err := h.settle()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AFTER")
	assert.Len(t, h.completes(), 1)
	assert.Equal(t, model.PhaseIdle, h.st.State().Phase)
}

func TestNavigateAfter_DefersPush(t *testing.T) {
	h := newHarness(t, "/", visibleAndHidden())

	h.st.Dispatch(NavigateAfter(model.PathString("/visible"), 30*time.Millisecond))
	assert.Empty(t, h.completes())
	assert.Equal(t, model.PhaseInProgress, h.nav.Phase())
	assert.Equal(t, "/", h.hist.Location().Pathname)

	require.NoError(t, h.settle())
	require.Len(t, h.completes(), 1)
	assert.Equal(t, "/visible", h.hist.Location().Pathname)
	assert.Equal(t, model.PhaseIdle, h.nav.Phase())
}

func TestNavigateAfter_StaleDelayedPushIsDropped(t *testing.T) {
	h := newHarness(t, "/", []model.RouteDefinition{
		{Title: "A", Path: "/a"},
		{Title: "B", Path: "/b"},
	})

	h.st.Dispatch(NavigateAfter(model.PathString("/a"), 30*time.Millisecond))
	h.st.Dispatch(NavigateTo("/b"))
	require.NoError(t, h.settle())

	completes := h.completes()
	require.Len(t, completes, 1)
	assert.Equal(t, "/b", completes[0].Section.Path)
	assert.Equal(t, "/b", h.hist.Location().Pathname)
	assertLegalPhases(t, h.phases())
}

func TestNavigate_ActionRoute(t *testing.T) {
	t.Run("default action", func(t *testing.T) {
		h := newHarness(t, "/", []model.RouteDefinition{
			{Title: "Sign out", Path: "action::sign%20out", Visibility: model.Hidden},
		})

		h.st.Dispatch(NavigateTo("Action::Sign%20Out"))
		require.NoError(t, h.settle())

		assert.Equal(t, []string{TypePreRequest, TypeAction}, h.types())
		h.mu.Lock()
		invoked := h.actions[1].(ActionInvoked)
		h.mu.Unlock()
		assert.Equal(t, "sign out", invoked.NavigationAction)
		assert.True(t, invoked.Section.PathFound)
		assert.Zero(t, h.nav.Counter(), "action routes take no request number")
		assert.Equal(t, "/", h.hist.Location().Pathname)
	})

	t.Run("handler replaces default", func(t *testing.T) {
		handler := func(ctx context.Context, route model.ResolvedRoute, stage model.Stage, state any) (model.Outcome, error) {
			assert.Equal(t, model.StageAction, stage)
			return Intercept(func([]model.Action) []model.Action {
				return []model.Action{extra("logged out")}
			}), nil
		}
		h := newHarness(t, "/", []model.RouteDefinition{
			{Title: "Logout", Path: "action::logout", Visibility: model.Hidden, Handler: handler},
		})

		h.st.Dispatch(NavigateTo("action::logout"))
		require.NoError(t, h.settle())
		assert.Equal(t, []string{TypePreRequest, "EXTRA"}, h.types())
	})
}

func TestNavigate_StructuredFragment(t *testing.T) {
	h := newHarness(t, "/", visibleAndHidden())

	h.st.Dispatch(Navigate(model.PathObject("/visible?x=1#top")))
	require.NoError(t, h.settle())

	completes := h.completes()
	require.Len(t, completes, 1, "the fragment replace does not complete again")
	assert.Equal(t, "/visible?x=1#top", completes[0].Section.FullPath)
	assert.Equal(t, "top", completes[0].Section.Fragment)
	assert.Equal(t, history.Location{Pathname: "/visible", Search: "?x=1", Hash: "#top"}, h.hist.Location())
	entries, _ := h.hist.Entries()
	assert.Len(t, entries, 2)

	state := h.st.State()
	assert.Equal(t, "/visible?x=1#top", state.FullPath)
	assert.Equal(t, "/visible?x=1", state.Path)
}

func TestNavigate_QueryKeepsSectionActive(t *testing.T) {
	h := newHarness(t, "/", visibleAndHidden())

	h.st.Dispatch(NavigateTo("/visible?tab=a"))
	require.NoError(t, h.settle())

	state := h.st.State()
	assert.Equal(t, "/visible?tab=a", state.Path)
	require.Len(t, state.Sections, 1)
	assert.True(t, state.Sections[0].Active)
}

func TestSections_PrefixMatchIgnoresQuery(t *testing.T) {
	defs := []model.RouteDefinition{
		{Title: "Visible", Path: "/visible"},
		{Title: "Other", Path: "/other"},
	}
	sections := Sections(defs, "/Visible/123?tab=a&x")
	require.Len(t, sections, 2)
	assert.True(t, sections[0].Active)
	assert.False(t, sections[1].Active)
}

func TestNavigate_UnmatchedStillCompletes(t *testing.T) {
	h := newHarness(t, "/", visibleAndHidden())

	h.st.Dispatch(NavigateTo("/does_not_exist"))
	require.NoError(t, h.settle())

	require.Len(t, h.completes(), 1)
	state := h.st.State()
	assert.False(t, state.PathFound)
	assert.Equal(t, "/does_not_exist", state.Path)
	assert.Equal(t, "/does_not_exist", state.PathPattern)
}

func TestExternalHistoryChangeCompletes(t *testing.T) {
	h := newHarness(t, "/", []model.RouteDefinition{
		{Title: "A", Path: "/a"},
		{Title: "B", Path: "/b"},
	})

	h.st.Dispatch(NavigateTo("/a"))
	h.st.Dispatch(NavigateTo("/b"))
	require.NoError(t, h.settle())
	require.True(t, h.hist.Back())
	require.NoError(t, h.settle())

	completes := h.completes()
	require.Len(t, completes, 3)
	assert.Equal(t, "/a", completes[2].Section.Path)

	state := h.st.State()
	assert.Equal(t, "/a", state.Path)
	assert.True(t, state.Sections[0].Active)
	assert.False(t, state.Sections[1].Active)
}

func TestActiveSections_CaseInsensitivePrefix(t *testing.T) {
	h := newHarness(t, "/", []model.RouteDefinition{
		{Title: "Docs", Path: "/docs"},
		{Title: "Doc item", Path: "/docs/:id"},
		{Title: "Other", Path: "/other"},
	})

	h.st.Dispatch(NavigateTo("/DOCS/intro"))
	require.NoError(t, h.settle())

	sections := h.st.State().Sections
	require.Len(t, sections, 3)
	assert.True(t, sections[0].Active)
	assert.False(t, sections[1].Active, "patterns are compared literally")
	assert.False(t, sections[2].Active)
	for i, s := range sections {
		assert.Equal(t, i, s.Index)
	}
}

func TestDynamicRegistrationIsVisible(t *testing.T) {
	h := newHarness(t, "/", visibleAndHidden())
	h.table.Register(model.RouteDefinition{Title: "Late", Path: "/late"})

	h.st.Dispatch(NavigateTo("/late"))
	require.NoError(t, h.settle())

	state := h.st.State()
	assert.True(t, state.PathFound)
	assert.Equal(t, "Late", state.Title)
	assert.Len(t, state.Sections, 2)
}

func TestHandlerReceivesState(t *testing.T) {
	got := make(chan any, 2)
	handler := func(ctx context.Context, route model.ResolvedRoute, stage model.Stage, state any) (model.Outcome, error) {
		got <- state
		return model.Outcome{}, nil
	}
	h := newHarness(t, "/", []model.RouteDefinition{{Title: "Visible", Path: "/visible", Handler: handler}},
		WithStateReader(func() any { return "app-state" }))

	h.st.Dispatch(NavigateTo("/visible"))
	require.NoError(t, h.settle())

	assert.Equal(t, "app-state", <-got)
}

func TestNavigate_NewRequestWhileInProgress(t *testing.T) {
	h := newHarness(t, "/", []model.RouteDefinition{
		{Title: "A", Path: "/a"},
		{Title: "B", Path: "/b"},
	})

	h.st.Dispatch(NavigateAfter(model.PathString("/a"), 50*time.Millisecond))
	require.Equal(t, model.PhaseInProgress, h.nav.Phase())
	h.st.Dispatch(NavigateTo("/b"))
	require.NoError(t, h.settle())

	assertLegalPhases(t, h.phases())
	assert.Equal(t, model.PhaseIdle, h.st.State().Phase)
}
