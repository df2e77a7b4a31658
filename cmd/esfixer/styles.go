package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dm/esfixer/internal/model"
)

var (
	colorGreen  = lipgloss.Color("#10b981")
	colorYellow = lipgloss.Color("#f59e0b")
	colorRed    = lipgloss.Color("#ef4444")
	colorGray   = lipgloss.Color("#6b7280")
	colorCyan   = lipgloss.Color("#06b6d4")
	colorOrange = lipgloss.Color("#f97316")
)

var (
	styleTitle       = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleTableHeader = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(colorGray).Padding(0, 1)
	styleCell        = lipgloss.NewStyle().Padding(0, 1)
	styleDim         = lipgloss.NewStyle().Foreground(colorGray)
	styleOK          = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	styleWarn        = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	styleError       = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
)

// styleCode frames JSON fix bodies.
var styleCode = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorGray).
	Padding(0, 1)

// severityStyle colours a severity label.
func severityStyle(s model.Severity) lipgloss.Style {
	switch s {
	case model.SeverityCritical:
		return lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	case model.SeverityHigh:
		return lipgloss.NewStyle().Bold(true).Foreground(colorOrange)
	case model.SeverityMedium:
		return lipgloss.NewStyle().Foreground(colorYellow)
	default:
		return lipgloss.NewStyle().Foreground(colorGray)
	}
}

// statusStyle colours apply statuses, cycle statuses and history actions.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case string(model.ApplySuccess), string(model.CycleIdle), string(model.ActionFixed):
		return styleOK
	case string(model.ApplySkipped), string(model.CycleActionRequired), string(model.ActionProposalGenerated):
		return styleWarn
	case string(model.ApplyError), string(model.ActionFailed): // model.CycleError has the same value as model.ApplyError
		return styleError
	default:
		return styleDim
	}
}
