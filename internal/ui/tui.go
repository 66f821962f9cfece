// ABOUTME: TUI program setup and session notifier bridge
// ABOUTME: Forwards session events into bubbletea via Program.Send
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Run creates the TUI program. The caller hands NewNotifier(p) to the
// session controller, then blocks in p.Run until the user quits.
func Run(ctrl Controller, serverURL string) *tea.Program {
	return tea.NewProgram(NewModel(ctrl, serverURL), tea.WithAltScreen())
}

// sender is the part of tea.Program the notifier needs.
type sender interface {
	Send(tea.Msg)
}

// Notifier adapts session callbacks into program messages. Send is
// non-blocking once the program has started, so it is safe to call from
// the session loop.
type Notifier struct {
	p sender
}

// NewNotifier wraps a running program.
func NewNotifier(p sender) *Notifier {
	return &Notifier{p: p}
}

func (n *Notifier) StatusChanged(status string) {
	n.p.Send(StatusMsg{Status: status})
}

func (n *Notifier) LevelChanged(rms float64) {
	n.p.Send(LevelMsg{RMS: rms})
}

func (n *Notifier) TranscriptChanged(text string, final bool) {
	n.p.Send(TranscriptMsg{Text: text, Final: final})
}

func (n *Notifier) ReplyChanged(text string, done bool) {
	n.p.Send(ReplyMsg{Text: text, Done: done})
}

func (n *Notifier) SearchStarted() {
	n.p.Send(SearchMsg{})
}

func (n *Notifier) ConnectionChanged(connected bool) {
	n.p.Send(ConnMsg{Connected: connected})
}
