package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vburojevic/xcpipe/internal/core"
)

type (
	lineMsg  string
	eventMsg core.Event
	doneMsg  struct{}
)

const maxLineWidth = 100

type progressModel struct {
	title   string
	status  string
	spinner spinner.Model
	styles  Styles

	started time.Time
	now     func() time.Time

	last     string
	lastSev  Severity
	errors   int
	warnings int
	done     bool
}

func newProgressModel(title string, now func() time.Time) progressModel {
	if now == nil {
		now = time.Now
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	st := DefaultStyles()
	sp.Style = st.Running
	return progressModel{
		title:   title,
		spinner: sp,
		styles:  st,
		started: now(),
		now:     now,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case lineMsg:
		line := strings.TrimSpace(string(msg))
		if line == "" {
			return m, nil
		}
		sev := ClassifyLine(line)
		switch sev {
		case SeverityError:
			m.errors++
		case SeverityWarning:
			m.warnings++
		}
		m.last, m.lastSev = truncate(line, maxLineWidth), sev
		return m, nil
	case eventMsg:
		if msg.Type == "status" && msg.Msg != "" {
			m.status = msg.Msg
		}
		return m, nil
	case doneMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}
	elapsed := m.now().Sub(m.started).Round(time.Second)
	head := fmt.Sprintf("%s %s %s", m.spinner.View(), m.title, m.styles.Muted.Render(elapsed.String()))
	if m.errors > 0 {
		head += " " + m.styles.Failure.Render(fmt.Sprintf("%d errors", m.errors))
	}
	if m.warnings > 0 {
		head += " " + m.styles.Warning.Render(fmt.Sprintf("%d warnings", m.warnings))
	}
	lines := []string{head}
	if m.status != "" {
		lines = append(lines, "  "+m.styles.Muted.Render(m.status))
	}
	if m.last != "" {
		lines = append(lines, "  "+m.lineStyle().Render(m.last))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m progressModel) lineStyle() lipgloss.Style {
	switch m.lastSev {
	case SeverityError:
		return m.styles.Failure
	case SeverityWarning:
		return m.styles.Warning
	default:
		return m.styles.Muted
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Progress shows a spinner with the latest xcodebuild line until Stop is
// called. It implements core.Emitter so status events update the view.
type Progress struct {
	program *tea.Program
	done    chan struct{}
}

// StartProgress renders to w. Signals are left to the caller.
func StartProgress(w io.Writer, title string) *Progress {
	p := &Progress{
		program: tea.NewProgram(newProgressModel(title, nil),
			tea.WithOutput(w),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		),
		done: make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		_, _ = p.program.Run()
	}()
	return p
}

func (p *Progress) Line(line string) { p.program.Send(lineMsg(line)) }

func (p *Progress) Emit(ev core.Event) { p.program.Send(eventMsg(ev)) }

// Stop clears the view and waits for the program to exit.
func (p *Progress) Stop() {
	p.program.Send(doneMsg{})
	<-p.done
}
