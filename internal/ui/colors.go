package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/songmigrate/internal/models"
)

var styles = NewPalette(Theme{
	Title: "#7D56F4",
	OK:    "#04B575",
	Err:   "#FF0000",
	Warn:  "#FFA500",
	Help:  "#626262",
})

// Theme holds the foreground colors of a [Palette].
type Theme struct {
	Title, OK, Err, Warn, Help string
}

// Palette is the stylesheet shared by the transfer model and the watcher.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t Theme) *Palette {
	return &Palette{
		title: NewBold(t.Title).MarginBottom(1),
		ok:    NewBold(t.OK),
		err:   NewBold(t.Err),
		warn:  NewStyle(t.Warn),
		help:  NewEm(t.Help),
	}
}

func (p *Palette) status(s models.Status) lipgloss.Style {
	switch s {
	case models.StatusCompleted:
		return p.ok
	case models.StatusFailed:
		return p.err
	case models.StatusCancelled:
		return p.warn
	default:
		return p.help
	}
}

// outcome styles one playlist line of a finished report. Transferred lines
// stay unstyled.
func (p *Palette) outcome(s models.OutcomeState) (lipgloss.Style, bool) {
	switch s {
	case models.OutcomeFailed:
		return p.err, true
	case models.OutcomeSkipped, models.OutcomeEmpty:
		return p.warn, true
	default:
		return lipgloss.Style{}, false
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
