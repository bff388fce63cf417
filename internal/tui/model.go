package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"navkit/internal/model"
	"navkit/internal/session"
	"navkit/internal/store"
)

// Browser is the navigation session the TUI drives.
type Browser interface {
	Navigate(search model.Search, delay time.Duration)
	Back() bool
	Forward() bool
	Sync()
	Links() ([]session.Link, error)
	ClickLink(i int) (bool, error)
	State() session.State
	Subscribe(fn store.Listener[session.State]) (unsubscribe func())
}

// Focus is the panel receiving up/down/enter.
type Focus int

const (
	FocusSections Focus = iota
	FocusLinks
)

const maxLogLines = 500

// AppModel holds the TUI state.
type AppModel struct {
	browser Browser
	actions chan MsgAction
	done    chan struct{}

	// Data
	State model.NavigationState
	Links []session.Link
	Log   []string
	Err   error

	// UI State
	Focus       Focus
	SectionIdx  int
	LinkIdx     int
	WindowSize  tea.WindowSizeMsg
	ShowHelp    bool
	Notice      string
	ActionCount int

	// Address bar
	InputMode   bool
	InputBuffer textinput.Model

	// Components
	LogViewport viewport.Model
}

// InitialModel returns the initial state for b. Call Close when the program
// exits to stop forwarding actions.
func InitialModel(b Browser) AppModel {
	ti := textinput.New()
	ti.Placeholder = "/path?query#fragment"
	ti.CharLimit = 200
	ti.Width = 40

	m := AppModel{
		browser:     b,
		actions:     make(chan MsgAction, 64),
		done:        make(chan struct{}),
		State:       b.State().Navigation,
		InputBuffer: ti,
		LogViewport: viewport.New(40, 10),
	}
	m.Links, m.Err = b.Links()
	return m
}

// Close stops forwarding store actions into the program.
func (m AppModel) Close() {
	select {
	case <-m.done:
	default:
		close(m.done)
	}
}

// Run starts the terminal browser and blocks until the user quits.
func Run(b Browser, opts ...tea.ProgramOption) error {
	m := InitialModel(b)
	unsubscribe := b.Subscribe(m.forward)
	defer unsubscribe()
	defer m.Close()

	_, err := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...).Run()
	return err
}

// forward is installed as a store listener. It blocks the dispatching
// goroutine until the program takes the action or quits.
func (m AppModel) forward(a model.Action, st session.State) {
	select {
	case m.actions <- MsgAction{Action: a, State: st}:
	case <-m.done:
	}
}
