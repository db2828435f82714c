package main

import (
	tea "github.com/charmbracelet/bubbletea"

	"prompter/session"
)

// EventSink abstracts the display layer so both the Bubble Tea TUI and the
// headless test mode receive the same session snapshots and notices.
type EventSink interface {
	State(st session.State)
	Notice(text string)
}

// StateMsg carries a session snapshot into the TUI.
type StateMsg struct{ State session.State }

// NoticeMsg is a one-line message shown under the meter.
type NoticeMsg struct{ Text string }

type tuiSink struct{ p *tea.Program }

func (s tuiSink) State(st session.State) { s.p.Send(StateMsg{State: st}) }
func (s tuiSink) Notice(text string)     { s.p.Send(NoticeMsg{Text: text}) }
