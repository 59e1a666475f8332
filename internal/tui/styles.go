package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
)

// Severity colors
var (
	colorException = lipgloss.Color("#FF00FF")
	colorCritical  = lipgloss.Color("#FF0000")
	colorWarning   = lipgloss.Color("#FFFF00")
	colorInfo      = lipgloss.Color("#00BFFF")
	colorHealthy   = lipgloss.Color("#00FF00")
	colorMuted     = lipgloss.Color("#888888")
	colorAccent    = lipgloss.Color("#7B68EE")
	colorBorder    = lipgloss.Color("#444444")
)

// Panel styles
var (
	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder)

	styleDetailPanel = lipgloss.NewStyle().
				Padding(0, 1).
				BorderStyle(lipgloss.NormalBorder()).
				BorderTop(true).
				BorderForeground(colorBorder)

	styleFooter = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	styleSearchPrompt = lipgloss.NewStyle().
				Foreground(colorAccent).Bold(true)
)

// severityStyle returns the lipgloss style for a severity label.
func severityStyle(severity string) lipgloss.Style {
	switch severity {
	case models.SeverityException:
		return lipgloss.NewStyle().Foreground(colorException).Bold(true)
	case models.SeverityCritical:
		return lipgloss.NewStyle().Foreground(colorCritical).Bold(true)
	case models.SeverityWarning:
		return lipgloss.NewStyle().Foreground(colorWarning)
	case models.SeverityInfo:
		return lipgloss.NewStyle().Foreground(colorInfo)
	case models.SeverityVerbose:
		return lipgloss.NewStyle().Foreground(colorMuted)
	default:
		return lipgloss.NewStyle()
	}
}

// healthStyle returns the lipgloss style for a health level.
func healthStyle(health string) lipgloss.Style {
	switch health {
	case models.HealthHealthy:
		return lipgloss.NewStyle().Foreground(colorHealthy).Bold(true)
	case models.HealthAttention:
		return lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	case models.HealthCritical:
		return lipgloss.NewStyle().Foreground(colorCritical).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(colorMuted)
	}
}
