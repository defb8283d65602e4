package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"orion/playback"
)

// TUI message types
type RecordingStartMsg struct{}
type RecordingStopMsg struct{}
type ProcessingMsg struct{}
type AudioLevelMsg struct{ Level float64 }
type CaptureErrorMsg struct{ Err error }
type TranscriptionMsg struct {
	Text     string
	Metrics  []string
	NoSpeech bool // true when no speech was detected
}
type PlaybackMsg struct {
	State playback.State
	Err   error
}
type NoteFlushMsg struct {
	ID    string
	State string
}
type SyncCountsMsg struct {
	Total   int
	Pending int
	Offline int
}
type ModeLineMsg struct{ Text string }   // format/language/server info
type DeviceLineMsg struct{ Text string } // microphone device name
type tickMsg time.Time

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateRecording
	tuiStateProcessing
)

type tuiModel struct {
	state         tuiState
	recordStart   time.Time
	audioLevel    float64
	width, height int

	playState playback.State
	playErr   error

	total, pending, offline int

	msgCount    int
	lastText    string
	lastMetrics []string
	noSpeech    bool
	lastErr     error

	modeLine   string
	deviceLine string
	helpLine   string
}

var (
	tuiProgram   *tea.Program
	tuiMu        sync.Mutex
	tuiReady     = make(chan struct{})
	tuiReadyOnce sync.Once
)

func NewTUIProgram(helpLine string) *tea.Program {
	m := tuiModel{helpLine: helpLine}
	return tea.NewProgram(m, tea.WithAltScreen())
}

// tuiSend delivers a message to the TUI if one is running.
func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	tuiReadyOnce.Do(func() { close(tuiReady) })
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case tickMsg:
		return m, tuiTick()

	case RecordingStartMsg:
		m.state = tuiStateRecording
		m.recordStart = time.Now()
		m.audioLevel = 0
		m.lastErr = nil

	case ProcessingMsg:
		m.state = tuiStateProcessing
		m.audioLevel = 0

	case RecordingStopMsg:
		m.state = tuiStateIdle
		m.audioLevel = 0

	case AudioLevelMsg:
		if m.state == tuiStateRecording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
		}

	case CaptureErrorMsg:
		m.state = tuiStateIdle
		m.lastErr = msg.Err

	case TranscriptionMsg:
		m.msgCount++
		m.lastText = msg.Text
		m.lastMetrics = msg.Metrics
		m.noSpeech = msg.NoSpeech

	case PlaybackMsg:
		m.playState = msg.State
		m.playErr = msg.Err

	case SyncCountsMsg:
		m.total = msg.Total
		m.pending = msg.Pending
		m.offline = msg.Offline

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text
	}
	return m, nil
}

var (
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	procStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	playStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	faintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	badSyncSty  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	goodSyncSty = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var lines []string

	// Capture status
	switch m.state {
	case tuiStateRecording:
		dur := time.Since(m.recordStart).Seconds()
		lines = append(lines, recStyle.Render(fmt.Sprintf("● REC %.1fs ", dur))+levelMeter(m.audioLevel))
	case tuiStateProcessing:
		lines = append(lines, procStyle.Render("◌ TRANSCRIBING..."))
	default:
		lines = append(lines, idleStyle.Render("○ STANDBY"))
	}
	if m.lastErr != nil {
		lines = append(lines, errStyle.Render("  ⚠ "+m.lastErr.Error()))
	}

	// Playback status
	switch m.playState {
	case playback.Requesting:
		lines = append(lines, procStyle.Render("♪ synthesizing..."))
	case playback.Playing:
		lines = append(lines, playStyle.Render("♪ speaking"))
	case playback.Paused:
		lines = append(lines, dimStyle.Render("♪ paused"))
	}
	if m.playErr != nil {
		lines = append(lines, errStyle.Render("  ⚠ "+m.playErr.Error()))
	}

	// Note sync status
	syncLine := fmt.Sprintf("notes: %d", m.total)
	sty := goodSyncSty
	if m.pending > 0 {
		syncLine += fmt.Sprintf(" · %d saving", m.pending)
		sty = dimStyle
	}
	if m.offline > 0 {
		syncLine += fmt.Sprintf(" · %d offline", m.offline)
		sty = badSyncSty
	}
	lines = append(lines, sty.Render(syncLine))

	lines = append(lines, "")
	if m.modeLine != "" {
		lines = append(lines, dimStyle.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		lines = append(lines, idleStyle.Render(m.deviceLine))
	}

	// Last transcription
	lines = append(lines, "")
	if m.lastText != "" || m.noSpeech {
		lines = append(lines, titleStyle.Render(fmt.Sprintf("Last transcription (#%d)", m.msgCount)))
		display := m.lastText
		sty := textStyle
		if m.noSpeech {
			display = "(no speech detected)"
			sty = errStyle
		}
		wrapWidth := m.width - 4
		if wrapWidth < 10 {
			wrapWidth = 10
		}
		for _, l := range wrapText(display, wrapWidth) {
			lines = append(lines, sty.Render("  "+l))
		}
		for _, metric := range m.lastMetrics {
			lines = append(lines, dimStyle.Render("  "+metric))
		}
	} else {
		lines = append(lines, idleStyle.Render("No transcriptions yet"))
	}

	lines = append(lines, "")
	if m.helpLine != "" {
		lines = append(lines, faintStyle.Render(m.helpLine))
	}
	lines = append(lines, faintStyle.Render("orion "+version))

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Padding(1, 2).
		Render(strings.Join(lines, "\n"))
}

const meterWidth = 20

func levelMeter(level float64) string {
	filled := int(level * 4 * meterWidth)
	if filled > meterWidth {
		filled = meterWidth
	}
	return playStyle.Render(strings.Repeat("▮", filled)) +
		faintStyle.Render(strings.Repeat("▯", meterWidth-filled))
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
