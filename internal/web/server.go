package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"navkit/internal/model"
	"navkit/internal/session"
	"navkit/internal/trace"
)

//go:embed static/*
var staticFS embed.FS

//go:embed help.md
var helpMD string

const (
	settleTimeout = 5 * time.Second
	eventBuffer   = 256
	writeTimeout  = 5 * time.Second
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRateLimit limits POST /api/navigate to r requests per second with the
// given burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(s *Server) { s.limiter = rate.NewLimiter(r, burst) }
}

// WithGatherer serves g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// Server exposes a navigation session over HTTP.
type Server struct {
	sess     *session.Session
	logger   *zap.Logger
	limiter  *rate.Limiter
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// NewServer creates a server for sess.
func NewServer(sess *session.Session, opts ...Option) *Server {
	s := &Server{
		sess:     sess,
		logger:   zap.NewNop(),
		limiter:  rate.NewLimiter(20, 40),
		gatherer: prometheus.DefaultGatherer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	mux := http.NewServeMux()

	// Serve static files
	subFS, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /", http.FileServer(http.FS(subFS)))

	// API Endpoints
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/navigate", s.handleNavigate)
	mux.HandleFunc("POST /api/back", s.handleBack)
	mux.HandleFunc("POST /api/forward", s.handleForward)
	mux.HandleFunc("POST /api/sync", s.handleSync)
	mux.HandleFunc("POST /api/click", s.handleClick)
	mux.HandleFunc("GET /api/resolve", s.handleResolve)
	mux.HandleFunc("GET /api/routes", s.handleRoutes)
	mux.HandleFunc("POST /api/routes", s.handleRegister)
	mux.HandleFunc("GET /api/trace", s.handleTrace)
	mux.HandleFunc("GET /api/help", handleHelp)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.mux = mux
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("web server listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type stateResponse struct {
	State    session.State `json:"state"`
	Phase    model.Phase   `json:"phase"`
	Location string        `json:"location"`
}

func (s *Server) snapshot() stateResponse {
	return stateResponse{
		State:    s.sess.State(),
		Phase:    s.sess.Phase(),
		Location: s.sess.History().Location().String(),
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

type navigateRequest struct {
	Path  string `json:"path"`
	Delay string `json:"delay,omitempty"`
	// Structured keeps the #fragment, like a location object would.
	Structured bool `json:"structured,omitempty"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		http.Error(w, "too many navigation requests", http.StatusTooManyRequests)
		return
	}

	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	var delay time.Duration
	if req.Delay != "" {
		d, err := time.ParseDuration(req.Delay)
		if err != nil || d < 0 {
			http.Error(w, "invalid delay", http.StatusBadRequest)
			return
		}
		delay = d
	}

	search := model.PathString(req.Path)
	if req.Structured {
		search = model.PathObject(req.Path)
	}
	s.sess.Navigate(search, delay)
	s.respondSettled(w, r)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	if !s.sess.Back() {
		http.Error(w, "no previous history entry", http.StatusConflict)
		return
	}
	s.respondSettled(w, r)
}

func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	if !s.sess.Forward() {
		http.Error(w, "no next history entry", http.StatusConflict)
		return
	}
	s.respondSettled(w, r)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	s.sess.Sync()
	s.respondSettled(w, r)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Href string `json:"href"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	intercepted, err := s.sess.Click(req.Href)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !intercepted {
		writeJSON(w, http.StatusOK, map[string]any{"intercepted": false})
		return
	}
	s.respondSettled(w, r)
}

// respondSettled answers with the state once navigation work has settled.
// ?wait=false answers immediately with 202.
func (s *Server) respondSettled(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("wait") == "false" {
		writeJSON(w, http.StatusAccepted, s.snapshot())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), settleTimeout)
	defer cancel()
	if err := s.sess.Settle(ctx); err != nil {
		s.logger.Warn("navigation settled with errors", zap.Error(err))
		writeJSON(w, http.StatusOK, struct {
			stateResponse
			Error string `json:"error"`
		}{s.snapshot(), err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	search := model.PathString(path)
	if r.URL.Query().Get("structured") == "true" {
		search = model.PathObject(path)
	}
	writeJSON(w, http.StatusOK, s.sess.Resolve(search))
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Table().Snapshot())
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title  string `json:"title"`
		Icon   string `json:"icon"`
		Path   string `json:"path"`
		Hidden bool   `json:"hidden"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	def := model.RouteDefinition{Title: req.Title, Icon: req.Icon, Path: req.Path}
	if req.Hidden {
		def.Visibility = model.Hidden
	}
	s.sess.Register(def)
	writeJSON(w, http.StatusCreated, def)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	result := s.sess.Analyze()

	response := struct {
		model.AnalysisResult
		Report        string `json:"Report"`
		VerboseReport string `json:"VerboseReport"`
		Version       string `json:"Version"`
	}{
		AnalysisResult: result,
		Report:         trace.GenerateReport(result, false),
		VerboseReport:  trace.GenerateReport(result, true),
		Version:        model.Version,
	}
	writeJSON(w, http.StatusOK, response)
}

func handleHelp(w http.ResponseWriter, r *http.Request) {
	text := strings.ReplaceAll(helpMD, "{{VERSION}}", model.Version)

	w.Header().Set("Content-Type", "text/markdown")
	w.Write([]byte(text))
}

// EventSnapshot is the type of the first event on a stream. It carries the
// state at subscription time and no action.
const EventSnapshot = "SNAPSHOT"

// Event is one store action as streamed on /api/events.
type Event struct {
	Seq      int          `json:"seq"`
	Type     string       `json:"type"`
	Action   model.Action `json:"action,omitempty"`
	Phase    model.Phase  `json:"phase"`
	FullPath string       `json:"fullPath"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	events := make(chan Event, eventBuffer)
	var (
		mu     sync.Mutex
		seq    int
		closed bool
	)
	unsubscribe := s.sess.Subscribe(func(a model.Action, st session.State) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		seq++
		ev := Event{Seq: seq, Type: a.ActionType(), Action: a, Phase: st.Navigation.Phase, FullPath: st.Navigation.FullPath}
		select {
		case events <- ev:
		default:
			// never block the dispatch loop on a slow client
			s.logger.Warn("dropping event for slow websocket client", zap.Int("seq", seq))
		}
	})
	defer func() {
		unsubscribe()
		mu.Lock()
		closed = true
		mu.Unlock()
	}()

	// The snapshot tells the client where the stream starts.
	st := s.sess.State()
	if err := ws.WriteJSON(Event{Type: EventSnapshot, Phase: st.Navigation.Phase, FullPath: st.Navigation.FullPath}); err != nil {
		return
	}

	// The client only sends close frames; reading surfaces them.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteJSON(ev); err != nil {
				s.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
