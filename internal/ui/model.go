// ABOUTME: Bubbletea model for the conversation TUI
// ABOUTME: Defines application state and update logic
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Controller is the model's handle on the session. Calls must be safe
// from the UI goroutine.
type Controller interface {
	Connect()
	Disconnect()
}

// Model represents the TUI state
type Model struct {
	ctrl Controller

	// Connection
	connected bool
	serverURL string

	// Conversation
	status     string
	searching  bool
	transcript string
	final      bool
	reply      string
	replyDone  bool

	// Mic
	level float64

	// Dimensions
	width  int
	height int
}

// Messages sent into the program by the session notifier.
type (
	ConnMsg       struct{ Connected bool }
	StatusMsg     struct{ Status string }
	LevelMsg      struct{ RMS float64 }
	TranscriptMsg struct {
		Text  string
		Final bool
	}
	ReplyMsg struct {
		Text string
		Done bool
	}
	SearchMsg struct{}
)

// NewModel creates the initial TUI model.
func NewModel(ctrl Controller, serverURL string) Model {
	return Model{
		ctrl:      ctrl,
		serverURL: serverURL,
		status:    "idle",
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case ConnMsg:
		m.connected = msg.Connected
		if !msg.Connected {
			m.level = 0
			m.searching = false
		}
	case StatusMsg:
		m.status = msg.Status
		if msg.Status != "thinking" {
			m.searching = false
		}
	case LevelMsg:
		m.level = msg.RMS
	case TranscriptMsg:
		m.transcript = msg.Text
		m.final = msg.Final
	case ReplyMsg:
		m.reply = msg.Text
		m.replyDone = msg.Done
	case SearchMsg:
		m.searching = true
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderConversation()
	s += m.renderHelp()

	return s
}

func (m Model) renderHeader() string {
	connStatus := "Disconnected"
	if m.connected {
		connStatus = fmt.Sprintf("Connected to %s", truncate(m.serverURL, 35))
	}

	statusText := statusLabel(m.status)
	if m.searching {
		statusText += " (searching)"
	}

	return fmt.Sprintf(`┌─ Baatein ────────────────────────────────────────────┐
│ %-52s │
│ %s %-50s │
│ Mic: [%s]%-26s │
├──────────────────────────────────────────────────────┤
`, connStatus, statusLamp(m.status), statusText, renderMeter(m.level, 20), "")
}

func (m Model) renderConversation() string {
	s := fmt.Sprintf("│ You:   %-45s │\n", truncate(transcriptLine(m.transcript, m.final), 45))
	s += fmt.Sprintf("│ Agent: %-45s │\n", truncate(m.reply, 45))
	return s
}

func (m Model) renderHelp() string {
	return `├──────────────────────────────────────────────────────┤
│ c:Connect  d:Disconnect  q:Quit                      │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.ctrl != nil {
			m.ctrl.Disconnect()
		}
		return m, tea.Quit
	case "c":
		if m.ctrl != nil {
			m.ctrl.Connect()
		}
	case "d":
		if m.ctrl != nil {
			m.ctrl.Disconnect()
		}
	}

	return m, nil
}

func statusLamp(status string) string {
	switch status {
	case "listening":
		return "●"
	case "thinking":
		return "◐"
	case "speaking":
		return "◉"
	default:
		return "○"
	}
}

func statusLabel(status string) string {
	switch status {
	case "listening":
		return "Listening"
	case "thinking":
		return "Thinking..."
	case "speaking":
		return "Speaking"
	default:
		return "Idle"
	}
}

func transcriptLine(text string, final bool) string {
	if text == "" {
		return ""
	}
	if !final {
		return text + " …"
	}
	return text
}

// renderMeter maps an RMS level onto a fixed-width bar. Full scale sits
// at 0.25 RMS; normal speech peaks well below digital full scale.
func renderMeter(rms float64, width int) string {
	frac := rms * 4
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * float64(width))
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
