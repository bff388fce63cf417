package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"navkit/internal/model"
	"navkit/internal/navigation"
	"navkit/internal/session"
)

// MsgAction is a store action forwarded into the program.
type MsgAction struct {
	Action model.Action
	State  session.State
}

// MsgNotice is a one-line status message.
type MsgNotice string

// MsgError indicates an error occurred.
type MsgError error

// Init starts listening for store actions.
func (m AppModel) Init() tea.Cmd {
	return m.waitForAction()
}

func (m AppModel) waitForAction() tea.Cmd {
	actions, done := m.actions, m.done
	return func() tea.Msg {
		select {
		case a := <-actions:
			return a
		case <-done:
			return nil
		}
	}
}

// Update handles events. Browser calls that dispatch run in commands: a
// dispatch forwards actions back into the program, which must not be blocked
// inside Update.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		m.LogViewport.Width = msg.Width/2 - 4
		h := msg.Height/2 - 4
		if h < 3 {
			h = 3
		}
		m.LogViewport.Height = h
		return m, nil

	case MsgAction:
		m.ActionCount++
		m.State = msg.State.Navigation
		m.appendLog(describe(m.ActionCount, msg.Action))
		if _, ok := msg.Action.(navigation.Complete); ok {
			m.Links, m.Err = m.browser.Links()
			if m.LinkIdx >= len(m.Links) {
				m.LinkIdx = 0
			}
		}
		return m, m.waitForAction()

	case MsgNotice:
		m.Notice = string(msg)
		return m, nil

	case MsgError:
		m.Err = msg
		return m, nil

	case tea.KeyMsg:
		if m.InputMode {
			switch msg.Type {
			case tea.KeyEnter:
				target := strings.TrimSpace(m.InputBuffer.Value())
				m.InputMode = false
				m.InputBuffer.Blur()
				if target == "" {
					return m, nil
				}
				return m, navigateCmd(m.browser, searchFor(target))
			case tea.KeyEsc:
				m.InputMode = false
				m.InputBuffer.Blur()
				m.InputBuffer.SetValue("")
				return m, nil
			}
			m.InputBuffer, cmd = m.InputBuffer.Update(msg)
			return m, cmd
		}

		if m.ShowHelp {
			m.ShowHelp = false
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "?":
			m.ShowHelp = true
		case "tab":
			if m.Focus == FocusSections {
				m.Focus = FocusLinks
			} else {
				m.Focus = FocusSections
			}
		case "up", "k":
			if m.Focus == FocusSections {
				if m.SectionIdx > 0 {
					m.SectionIdx--
				}
			} else if m.LinkIdx > 0 {
				m.LinkIdx--
			}
		case "down", "j":
			if m.Focus == FocusSections {
				if m.SectionIdx < len(m.State.Sections)-1 {
					m.SectionIdx++
				}
			} else if m.LinkIdx < len(m.Links)-1 {
				m.LinkIdx++
			}
		case "enter":
			if m.Focus == FocusSections {
				if m.SectionIdx < len(m.State.Sections) {
					return m, navigateCmd(m.browser, model.PathString(m.State.Sections[m.SectionIdx].Path))
				}
				return m, nil
			}
			if m.LinkIdx < len(m.Links) {
				return m, clickCmd(m.browser, m.Links[m.LinkIdx])
			}
		case "g", "/":
			m.InputMode = true
			m.InputBuffer.SetValue("")
			m.InputBuffer.Focus()
			return m, textinput.Blink
		case "b", "left":
			return m, backCmd(m.browser)
		case "f", "right":
			return m, forwardCmd(m.browser)
		case "s":
			return m, syncCmd(m.browser)
		case "pgup":
			m.LogViewport.HalfViewUp()
		case "pgdown":
			m.LogViewport.HalfViewDown()
		}
	}

	return m, cmd
}

func (m *AppModel) appendLog(line string) {
	m.Log = append(m.Log, line)
	if len(m.Log) > maxLogLines {
		m.Log = m.Log[len(m.Log)-maxLogLines:]
	}
	m.LogViewport.SetContent(strings.Join(m.Log, "\n"))
	m.LogViewport.GotoBottom()
}

// describe renders one action as a log line.
func describe(n int, a model.Action) string {
	line := fmt.Sprintf("%3d %s", n, a.ActionType())
	switch act := a.(type) {
	case navigation.PreRequest:
		line += " " + act.Search.Path
	case navigation.Requested:
		line += fmt.Sprintf(" #%d %s", act.Counter, act.Section.FullPath)
	case navigation.Allowed:
		line += fmt.Sprintf(" #%d", act.Counter)
	case navigation.Denied:
		line += fmt.Sprintf(" #%d %s", act.Counter, act.Section.FullPath)
	case navigation.PushHistory:
		line += " " + act.Section.FullPath
	case navigation.Complete:
		line += " " + act.Section.FullPath
		if !act.Section.PathFound {
			line += " " + model.IconUnknown
		}
	case navigation.ActionInvoked:
		line += " " + act.NavigationAction
	case navigation.PhaseChanged:
		line += " " + string(act.Phase)
	case session.AuditLogged:
		line += fmt.Sprintf(" %s %s", act.Stage, act.Path)
	}
	return line
}

func searchFor(target string) model.Search {
	if strings.Contains(target, "#") {
		return model.PathObject(target)
	}
	return model.PathString(target)
}

func navigateCmd(b Browser, search model.Search) tea.Cmd {
	return func() tea.Msg {
		b.Navigate(search, 0)
		return nil
	}
}

func clickCmd(b Browser, link session.Link) tea.Cmd {
	return func() tea.Msg {
		intercepted, err := b.ClickLink(link.Index)
		if err != nil {
			return MsgError(err)
		}
		if !intercepted {
			return MsgNotice(fmt.Sprintf("%s %s left the application", model.IconExternal, link.Href))
		}
		return MsgNotice("")
	}
}

func backCmd(b Browser) tea.Cmd {
	return func() tea.Msg {
		if !b.Back() {
			return MsgNotice("no previous entry")
		}
		return MsgNotice("")
	}
}

func forwardCmd(b Browser) tea.Cmd {
	return func() tea.Msg {
		if !b.Forward() {
			return MsgNotice("no next entry")
		}
		return MsgNotice("")
	}
}

func syncCmd(b Browser) tea.Cmd {
	return func() tea.Msg {
		b.Sync()
		return nil
	}
}
