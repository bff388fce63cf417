// Package session wires the route table, history, navigator, store, click
// interceptor and journal into one running navigation session.
package session

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"navkit/internal/clicks"
	"navkit/internal/history"
	"navkit/internal/metrics"
	"navkit/internal/model"
	"navkit/internal/navigation"
	"navkit/internal/resolve"
	"navkit/internal/routes"
	"navkit/internal/store"
	"navkit/internal/trace"
)

// DefaultOrigin is the page origin used when Config.Origin is empty.
const DefaultOrigin = "https://app.local"

// Config configures a Session.
type Config struct {
	RoutesFile string                  // optional TOML/YAML route file, loaded after Routes
	Routes     []model.RouteDefinition // routes registered up front
	Handlers   routes.HandlerSet       // handlers route files may refer to by name
	Initial    string                  // initial location, "/" when empty
	Origin     string                  // page origin for same-origin link checks
	Page       string                  // HTML served to the click interceptor; rendered from the table when empty

	// Permission decides requests while SetPermission(true) is in effect.
	// Nil allows everything.
	Permission navigation.PermissionFunc

	Logger     *zap.Logger
	Registerer prometheus.Registerer // nil disables metrics
}

// State is the application state tree handlers receive.
type State struct {
	Navigation model.NavigationState `json:"navigation"`
	Audit      []AuditLogged         `json:"audit,omitempty"`
}

// Link is an anchor on the session page.
type Link struct {
	Index    int    `json:"index"`
	Text     string `json:"text"`
	Href     string `json:"href"`
	External bool   `json:"external"`
}

var _ trace.Target = (*Session)(nil)

// Session is a running navigation session.
type Session struct {
	cfg      Config
	logger   *zap.Logger
	table    *routes.Table
	hist     *history.Memory
	nav      *navigation.Navigator
	store    *store.Store[State]
	clicks   *clicks.Interceptor
	recorder *trace.Recorder
	denied   atomic.Bool

	mu         sync.Mutex
	page       *clicks.Document
	pageRoutes int
	unsubs     []func()
}

// New builds a session and synchronizes it with the initial location.
func New(cfg Config) (*Session, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Origin == "" {
		cfg.Origin = DefaultOrigin
	}
	if cfg.Initial == "" {
		cfg.Initial = "/"
	}

	defs := append([]model.RouteDefinition(nil), cfg.Routes...)
	if cfg.RoutesFile != "" {
		loaded, err := routes.LoadFile(cfg.RoutesFile, cfg.Handlers)
		if err != nil {
			return nil, err
		}
		defs = append(defs, loaded...)
	}

	s := &Session{
		cfg:      cfg,
		logger:   cfg.Logger,
		table:    routes.NewTable(defs...),
		hist:     history.NewMemory(cfg.Initial),
		recorder: trace.NewRecorder(),
	}

	var m *metrics.Metrics
	if cfg.Registerer != nil {
		m = metrics.New(cfg.Registerer)
	}

	s.nav = navigation.New(s.table, s.hist,
		navigation.WithPermission(s.permit),
		navigation.WithLogger(cfg.Logger),
		navigation.WithMetrics(m),
		navigation.WithStateReader(func() any { return s.store.State() }),
	)
	s.store = store.New(State{Navigation: s.nav.InitialState()}, s.reduce,
		store.WithMiddleware(s.nav.Middleware()),
		store.WithLogger(cfg.Logger),
	)
	s.unsubs = append(s.unsubs, s.store.Subscribe(func(a model.Action, st State) {
		s.recorder.Record(a, st.Navigation)
	}))

	s.clicks = clicks.New(
		func(search model.Search) { s.store.Dispatch(navigation.Navigate(search)) },
		s.pageURL,
		clicks.WithLogger(cfg.Logger),
	)
	if _, err := s.document(); err != nil {
		s.Close()
		return nil, err
	}

	s.logger.Debug("session started",
		zap.Int("routes", s.table.Len()),
		zap.String("initial", cfg.Initial),
		zap.String("origin", cfg.Origin))
	s.Sync()
	return s, nil
}

func (s *Session) reduce(st State, a model.Action) State {
	st.Navigation = s.nav.Reduce(st.Navigation, a)
	if entry, ok := a.(AuditLogged); ok {
		st.Audit = append(append([]AuditLogged(nil), st.Audit...), entry)
	}
	return st
}

func (s *Session) permit(route model.ResolvedRoute, d navigation.Decision) {
	if s.denied.Load() {
		d.Deny()
		return
	}
	if s.cfg.Permission != nil {
		s.cfg.Permission(route, d)
		return
	}
	d.Allow()
}

func (s *Session) pageURL() string {
	return strings.TrimSuffix(s.cfg.Origin, "/") + s.hist.Location().String()
}

// Dispatch sends an action through the session store.
func (s *Session) Dispatch(a model.Action) { s.store.Dispatch(a) }

// Navigate requests a navigation, pushing history after delay.
func (s *Session) Navigate(search model.Search, delay time.Duration) {
	if delay > 0 {
		s.store.Dispatch(navigation.NavigateAfter(search, delay))
		return
	}
	s.store.Dispatch(navigation.Navigate(search))
}

// Back moves history back one entry. It reports false at the start.
func (s *Session) Back() bool { return s.hist.Back() }

// Forward moves history forward one entry. It reports false at the end.
func (s *Session) Forward() bool { return s.hist.Forward() }

// Sync re-resolves the current location.
func (s *Session) Sync() { s.store.Dispatch(navigation.SyncNavigation()) }

// Click simulates a click on a lone anchor with the given href and reports
// whether it stayed inside the application.
func (s *Session) Click(href string) (bool, error) {
	doc, err := clicks.ParseHTML(strings.NewReader(`<a href="` + html.EscapeString(href) + `"></a>`))
	if err != nil {
		return false, err
	}
	anchor, ok := doc.Find(func(n clicks.Node) bool { return n.TagName() == "a" })
	if !ok {
		return false, fmt.Errorf("session: no anchor for %q", href)
	}
	return s.clicks.Handle(clicks.NewClick(anchor)), nil
}

// Links lists the anchors on the session page.
func (s *Session) Links() ([]Link, error) {
	doc, err := s.document()
	if err != nil {
		return nil, err
	}
	anchors := doc.Anchors()
	out := make([]Link, len(anchors))
	for i, a := range anchors {
		out[i] = Link{Index: i, Text: a.Text(), Href: a.Href(), External: clicks.IsExternal(a)}
	}
	return out, nil
}

// ClickLink clicks the i-th anchor of the session page.
func (s *Session) ClickLink(i int) (bool, error) {
	doc, err := s.document()
	if err != nil {
		return false, err
	}
	anchors := doc.Anchors()
	if i < 0 || i >= len(anchors) {
		return false, fmt.Errorf("session: link %d out of range (%d links)", i, len(anchors))
	}
	return doc.Click(anchors[i]), nil
}

// document returns the page the interceptor listens on, re-rendering it when
// the table has grown since it was built.
func (s *Session) document() (*clicks.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.table.Len()
	if s.page != nil && (s.cfg.Page != "" || s.pageRoutes == n) {
		return s.page, nil
	}
	src := s.cfg.Page
	if src == "" {
		src = renderPage(s.table.Snapshot())
	}
	doc, err := clicks.ParseHTML(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	s.clicks.Detach()
	if err := s.clicks.Attach(doc); err != nil {
		return nil, err
	}
	s.page, s.pageRoutes = doc, n
	return doc, nil
}

// renderPage links every concrete route; patterns with parameters are skipped.
func renderPage(defs []model.RouteDefinition) string {
	var sb strings.Builder
	sb.WriteString("<html><body><nav>\n")
	for _, d := range defs {
		if strings.Contains(d.Path, ":") && !resolve.IsActionPath(d.Path) {
			continue
		}
		fmt.Fprintf(&sb, "<a href=\"%s\">%s</a>\n", html.EscapeString(d.Path), html.EscapeString(d.Title))
	}
	sb.WriteString("<a href=\"https://github.com/navkit/navkit\" rel=\"external\">Project site</a>\n")
	sb.WriteString("</nav></body></html>\n")
	return sb.String()
}

// Register adds or replaces a route at runtime.
func (s *Session) Register(def model.RouteDefinition) {
	s.table.Register(def)
}

// SetPermission switches between the configured permission check (true) and
// denying everything (false).
func (s *Session) SetPermission(allow bool) {
	s.denied.Store(!allow)
}

// Settle waits until no navigation work is pending and returns the handler
// errors raised since the previous Settle.
func (s *Session) Settle(ctx context.Context) error {
	return s.store.Settle(ctx)
}

// State returns the current state tree.
func (s *Session) State() State { return s.store.State() }

// Subscribe registers fn for every reduced action.
func (s *Session) Subscribe(fn store.Listener[State]) (unsubscribe func()) {
	return s.store.Subscribe(fn)
}

// Resolve matches search against the current table without navigating.
func (s *Session) Resolve(search model.Search) model.ResolvedRoute {
	return s.nav.Resolve(search)
}

// Table returns the route table.
func (s *Session) Table() *routes.Table { return s.table }

// History returns the session history.
func (s *Session) History() *history.Memory { return s.hist }

// Phase returns the navigator's phase, which leads the reduced state.
func (s *Session) Phase() model.Phase { return s.nav.Phase() }

// Journal returns every action recorded so far.
func (s *Session) Journal() []model.TraceEvent { return s.recorder.Events() }

// Analyze groups the journal into attempts against the current state.
func (s *Session) Analyze() model.AnalysisResult {
	return trace.NewAnalyzer().Analyze(s.recorder.Events(), s.State().Navigation)
}

// Close stops the session. Pending commands are cancelled.
func (s *Session) Close() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
	s.clicks.Detach()
	s.nav.Close()
	s.store.Close()
}
