package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Colors is the pastel palette shared by the progress view and the status
// line. Each color adapts to light and dark terminals.
type Colors struct {
	Accent    lipgloss.AdaptiveColor
	Success   lipgloss.AdaptiveColor
	Warning   lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor
	Running   lipgloss.AdaptiveColor
	Text      lipgloss.AdaptiveColor
	TextMuted lipgloss.AdaptiveColor
}

func PastelColors() Colors {
	return Colors{
		Accent:    lipgloss.AdaptiveColor{Light: "#5A7BC0", Dark: "#7AA2F7"},
		Success:   lipgloss.AdaptiveColor{Light: "#5B8A3A", Dark: "#9ECE6A"},
		Warning:   lipgloss.AdaptiveColor{Light: "#C48F2C", Dark: "#E0AF68"},
		Error:     lipgloss.AdaptiveColor{Light: "#C74B5C", Dark: "#F7768E"},
		Running:   lipgloss.AdaptiveColor{Light: "#8B6AB0", Dark: "#BB9AF7"},
		Text:      lipgloss.AdaptiveColor{Light: "#383A42", Dark: "#C0CAF5"},
		TextMuted: lipgloss.AdaptiveColor{Light: "#6C6E7A", Dark: "#9AA5CE"},
	}
}

type Styles struct {
	Colors Colors

	Success lipgloss.Style
	Failure lipgloss.Style
	Warning lipgloss.Style
	Running lipgloss.Style
	Muted   lipgloss.Style
	ID      lipgloss.Style
}

func DefaultStyles() Styles {
	c := PastelColors()
	return Styles{
		Colors:  c,
		Success: lipgloss.NewStyle().Foreground(c.Success).Bold(true),
		Failure: lipgloss.NewStyle().Foreground(c.Error).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(c.Warning),
		Running: lipgloss.NewStyle().Foreground(c.Running).Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(c.TextMuted),
		ID:      lipgloss.NewStyle().Foreground(c.Accent),
	}
}

var statusWords = []string{"SUCCESS", "FAILED", "PASS", "FAIL"}

// Colorize highlights the status word on the first line of a result summary
// and dims hint lines. Everything else is returned as is.
func (s Styles) Colorize(summary string) string {
	lines := strings.Split(summary, "\n")
	if len(lines) == 0 {
		return summary
	}
	first := lines[0]
	for _, w := range statusWords {
		token := " " + w + " "
		if !strings.Contains(first, token) && !strings.HasSuffix(first, " "+w) {
			continue
		}
		style := s.Success
		if w == "FAILED" || w == "FAIL" {
			style = s.Failure
		}
		first = strings.Replace(first, " "+w, " "+style.Render(w), 1)
		break
	}
	if i := strings.LastIndex(first, " ["); i >= 0 && strings.HasSuffix(first, "]") {
		first = first[:i+1] + s.ID.Render(first[i+1:])
	}
	lines[0] = first
	for i := 1; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "  •") {
			lines[i] = s.Muted.Render(lines[i])
		}
	}
	return strings.Join(lines, "\n")
}
