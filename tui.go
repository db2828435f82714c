package main

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"prompter/audio"
	"prompter/level"
	"prompter/session"
	"prompter/teleprompter"
)

// commands is what the TUI can ask of the app. Every call runs inside a
// tea.Cmd, off the event loop, since the session reports back through
// Program.Send.
type commands interface {
	Toggle() error
	TogglePause() error
	Save() (string, error)
	Discard() error
	Preview() (bool, error)
	SelectDevice(id string) error
	RefreshDevices() error
	SetScrollSpeed(speed float64)
	SetFontSize(size int)
	ToggleRehearse() bool
	ResetScroll()
	ReloadScript() (string, error)
	SetCountdown(secs int)
}

// resultMsg reports a finished command.
type resultMsg struct {
	op   string
	text string
	err  error
}

const (
	meterWidth = 32
	// lineSpacing maps the font size onto the height of one script row, in
	// the same units the scroll position advances in.
	lineSpacing = 1.5
	chromeRows  = 8
)

type tuiModel struct {
	cmds          commands
	st            session.State
	width, height int
	notice        string
	picking       bool
	cursor        int
	showHelp      bool
}

var (
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	faintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	currentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	scriptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("247"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	countStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Bold(true)

	statusStyles = map[session.Status]lipgloss.Style{
		session.Idle:         lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		session.CountingDown: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		session.Recording:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		session.Paused:       lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		session.Stopped:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
	statusGlyphs = map[session.Status]string{
		session.Idle:         "○",
		session.CountingDown: "◔",
		session.Recording:    "●",
		session.Paused:       "❚❚",
		session.Stopped:      "■",
	}
)

func newTUIModel(cmds commands) tuiModel {
	return tuiModel{cmds: cmds}
}

func NewTUIProgram(cmds commands) *tea.Program {
	return tea.NewProgram(newTUIModel(cmds), tea.WithAltScreen())
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case StateMsg:
		if msg.State.Status != m.st.Status && msg.State.Status == session.CountingDown {
			m.notice = ""
		}
		m.st = msg.State
		if m.cursor >= len(m.st.Devices) {
			m.cursor = max(0, len(m.st.Devices)-1)
		}

	case NoticeMsg:
		m.notice = msg.Text

	case resultMsg:
		switch {
		case msg.err != nil:
			if text := errorText(msg.err); text != "" {
				m.notice = text
			}
		case msg.text != "":
			m.notice = msg.text
		}
	}
	return m, nil
}

func (m tuiModel) handleKey(key string) (tea.Model, tea.Cmd) {
	if m.picking {
		return m.handlePickerKey(key)
	}
	switch key {
	case KeyQuit, KeyCtrlC:
		return m, tea.Quit
	case KeyRecord:
		return m, m.run("record", m.cmds.Toggle)
	case KeyPause:
		return m, m.run("pause", m.cmds.TogglePause)
	case KeyDiscard:
		return m, m.run("discard", m.cmds.Discard)
	case KeyRefresh:
		return m, m.run("refresh", m.cmds.RefreshDevices)
	case KeySave:
		return m, func() tea.Msg {
			path, err := m.cmds.Save()
			return resultMsg{op: "save", text: "Saved " + path, err: err}
		}
	case KeyPreview:
		return m, func() tea.Msg {
			playing, err := m.cmds.Preview()
			text := "Preview stopped."
			if playing {
				text = "Playing take..."
			}
			return resultMsg{op: "preview", text: text, err: err}
		}
	case KeyRehearse:
		return m, func() tea.Msg {
			text := "Rehearsal off."
			if m.cmds.ToggleRehearse() {
				text = "Rehearsing: the script scrolls without recording."
			}
			return resultMsg{op: "rehearse", text: text}
		}
	case KeyReset:
		return m, m.call(m.cmds.ResetScroll)
	case KeyReload:
		return m, func() tea.Msg {
			path, err := m.cmds.ReloadScript()
			return resultMsg{op: "reload", text: "Reloaded " + path, err: err}
		}
	case KeyFaster, KeyFasterAlt:
		speed := m.st.Scroll.Speed + speedStep
		return m, m.call(func() { m.cmds.SetScrollSpeed(speed) })
	case KeySlower:
		speed := m.st.Scroll.Speed - speedStep
		return m, m.call(func() { m.cmds.SetScrollSpeed(speed) })
	case KeyFontUp:
		size := m.st.Scroll.FontSize + fontStep
		return m, m.call(func() { m.cmds.SetFontSize(size) })
	case KeyFontDown:
		size := m.st.Scroll.FontSize - fontStep
		return m, m.call(func() { m.cmds.SetFontSize(size) })
	case KeyCountUp:
		secs := m.st.CountdownDuration + 1
		return m, m.call(func() { m.cmds.SetCountdown(secs) })
	case KeyCountDown:
		secs := m.st.CountdownDuration - 1
		return m, m.call(func() { m.cmds.SetCountdown(secs) })
	case KeyDevices, KeyDevicesG:
		if len(m.st.Devices) == 0 {
			m.notice = "No microphone found."
			return m, nil
		}
		m.picking = true
		m.cursor = 0
		for i, d := range m.st.Devices {
			if d.ID == m.st.SelectedDevice {
				m.cursor = i
			}
		}
	case KeyHelp:
		m.showHelp = !m.showHelp
	}
	return m, nil
}

func (m tuiModel) handlePickerKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case KeyCtrlC:
		return m, tea.Quit
	case KeyUp, KeyK:
		if m.cursor > 0 {
			m.cursor--
		}
	case KeyDown, KeyJ:
		if m.cursor < len(m.st.Devices)-1 {
			m.cursor++
		}
	case KeyEnter:
		m.picking = false
		if m.cursor < len(m.st.Devices) {
			id := m.st.Devices[m.cursor].ID
			return m, m.run("select device", func() error { return m.cmds.SelectDevice(id) })
		}
	case KeyEsc, KeyQuit, KeyDevices:
		m.picking = false
	}
	return m, nil
}

func (m tuiModel) run(op string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return resultMsg{op: op, err: fn()}
	}
}

func (m tuiModel) call(fn func()) tea.Cmd {
	return func() tea.Msg {
		fn()
		return nil
	}
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	bodyHeight := max(1, m.height-chromeRows)
	var body string
	switch {
	case m.picking:
		body = renderPicker(m.st.Devices, m.cursor, m.st.SelectedDevice)
	case m.st.Status == session.CountingDown:
		body = renderCountdown(m.st.CountdownRemaining, m.width, bodyHeight)
	default:
		body = renderScript(m.st.Scroll, m.width-2, bodyHeight)
	}
	body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).PaddingLeft(1).Render(body)

	lines := []string{
		renderStatusLine(m.st),
		renderDeviceLine(m.st),
		body,
		renderMeter(m.st.Level, m.st.Monitoring, meterWidth),
		renderTakeLine(m.st),
		renderNotice(m.notice, m.st),
		renderHelp(m.showHelp),
	}
	return strings.Join(lines, "\n")
}

func renderStatusLine(st session.State) string {
	style := statusStyles[st.Status]
	status := style.Render(statusGlyphs[st.Status] + " " + st.Status.Label())
	switch st.Status {
	case session.Recording, session.Paused:
		status += " " + style.Render(session.FormatElapsed(st.Elapsed))
	case session.CountingDown:
		status += " " + style.Render(fmt.Sprintf("%d", st.CountdownRemaining))
	}

	settings := fmt.Sprintf("speed %.2f · font %d · countdown %ds", st.Scroll.Speed, st.Scroll.FontSize, st.CountdownDuration)
	if st.Scroll.Rehearsing {
		settings += " · rehearsing"
	}
	return status + "   " + dimStyle.Render(settings)
}

func renderDeviceLine(st session.State) string {
	name := "not connected"
	if st.Monitoring {
		name = st.DeviceName
	}
	line := dimStyle.Render("mic: " + name + " (i)")
	if st.Bluetooth {
		line += " " + warnStyle.Render("(BT! lower audio quality)")
	}
	if st.PendingDevice != "" {
		label := st.PendingDevice
		if d, ok := audio.FindDevice(st.Devices, st.PendingDevice); ok {
			label = d.Label()
		}
		line += " " + dimStyle.Render("→ "+label+" after this take")
	}
	return line
}

func renderCountdown(remaining, width, height int) string {
	digit := "…"
	if remaining > 0 {
		digit = fmt.Sprintf("%d", remaining)
	}
	return lipgloss.Place(width-2, height, lipgloss.Center, lipgloss.Center, countStyle.Render(digit))
}

// renderScript draws the visible window of the teleprompter text. The first
// visible row is the reading line.
func renderScript(sc teleprompter.State, width, height int) string {
	rows := wrapScript(sc.Text, width)
	offset := min(scrollOffset(sc.Position, sc.FontSize), max(0, len(rows)-1))
	end := min(len(rows), offset+height)

	var b strings.Builder
	for i, row := range rows[offset:end] {
		if i == 0 {
			b.WriteString(currentStyle.Render(row))
		} else {
			b.WriteString(scriptStyle.Render(row))
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// scrollOffset converts a scroll position into the index of the first
// visible row. Bigger fonts scroll through fewer rows per tick.
func scrollOffset(position float64, fontSize int) int {
	if position <= 0 || fontSize <= 0 {
		return 0
	}
	return int(position / (float64(fontSize) * lineSpacing))
}

func renderMeter(r level.Reading, active bool, width int) string {
	if !active {
		return faintStyle.Render(strings.Repeat("░", width) + "   -- dB")
	}
	filled := int(math.Round(min(1, max(0, r.Level)) * float64(width)))
	bar := lipgloss.NewStyle().Foreground(lipgloss.Color(level.Gradient(r.DB))).Render(strings.Repeat("█", filled))
	bar += faintStyle.Render(strings.Repeat("░", width-filled))
	band := lipgloss.NewStyle().Foreground(lipgloss.Color(level.Color(r.Band))).Bold(true).Render(strings.ToUpper(r.Band.String()))
	return fmt.Sprintf("%s %6.1f dB  %s", bar, r.DB, band)
}

func renderTakeLine(st session.State) string {
	if !st.HasArtifact {
		return dimStyle.Render(fmt.Sprintf("takes: %d", st.Takes))
	}
	take := fmt.Sprintf("take: %s (%s)", st.ArtifactName, session.FormatElapsed(st.ArtifactDuration))
	if st.Saved {
		return dimStyle.Render(take) + " " + okStyle.Render("[✓ saved]")
	}
	return dimStyle.Render(take) + " " + boldStyle.Render("s") + faintStyle.Render(" save  ") +
		boldStyle.Render("x") + faintStyle.Render(" discard  ") +
		boldStyle.Render("v") + faintStyle.Render(" preview")
}

func renderNotice(notice string, st session.State) string {
	switch {
	case st.NoVoice && st.Status.Capturing():
		return warnStyle.Render("⚠ no voice detected")
	case notice != "":
		return warnStyle.Render(notice)
	case st.Err != nil:
		return warnStyle.Render(errorText(st.Err))
	}
	return ""
}

func renderHelp(full bool) string {
	if !full {
		return boldStyle.Render("space") + faintStyle.Render(" record  ") +
			boldStyle.Render("p") + faintStyle.Render(" pause  ") +
			boldStyle.Render("?") + faintStyle.Render(" keys  ") +
			faintStyle.Render("prompter "+version)
	}
	return faintStyle.Render("space record/stop · p pause · s save · x discard · v preview · t rehearse · 0 top · l reload · " +
		"+/- speed · [/] font · </> countdown · i mic · R rescan · q quit")
}

func renderPicker(devices []audio.DeviceInfo, cursor int, selected string) string {
	var b strings.Builder
	b.WriteString(dimStyle.Render("Select microphone (↑/↓, enter, esc):") + "\n\n")
	for i, d := range devices {
		tag := ""
		if d.ID == selected {
			tag = " (current)"
		}
		if audio.IsBluetooth(d.Label()) {
			tag += " " + warnStyle.Render("[⚠ lower audio quality]")
		}
		if i == cursor {
			b.WriteString(cursorStyle.Render("▶ "+d.Label()) + tag + "\n")
		} else {
			b.WriteString("  " + d.Label() + tag + "\n")
		}
	}
	return b.String()
}

// wrapScript wraps each paragraph of text to width columns. Blank lines are
// kept so paragraph breaks survive.
func wrapScript(text string, width int) []string {
	var rows []string
	for _, para := range strings.Split(text, "\n") {
		rows = append(rows, wrapText(para, width)...)
	}
	return rows
}

func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if lipgloss.Width(line)+1+lipgloss.Width(w) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		line += " " + w
	}
	return append(lines, line)
}
