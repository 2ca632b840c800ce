// Package ui provides terminal styling for rb CLI output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rulebook-dev/rulebook/internal/types"
)

// Ayu theme color palette
var (
	ColorPass   = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
)

var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	BoldStyle   = lipgloss.NewStyle().Bold(true)
)

// CategoryStyle for section headers
var CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"
	IconInfo = "ℹ"
)

const SeparatorLight = "──────────────────────────────────────────"

func RenderPass(s string) string   { return PassStyle.Render(s) }
func RenderWarn(s string) string   { return WarnStyle.Render(s) }
func RenderFail(s string) string   { return FailStyle.Render(s) }
func RenderMuted(s string) string  { return MutedStyle.Render(s) }
func RenderAccent(s string) string { return AccentStyle.Render(s) }
func RenderBold(s string) string   { return BoldStyle.Render(s) }

// RenderCategory renders a section header in uppercase.
func RenderCategory(s string) string {
	return CategoryStyle.Render(strings.ToUpper(s))
}

// RenderSeparator renders the light separator line in muted color.
func RenderSeparator() string {
	return MutedStyle.Render(SeparatorLight)
}

func RenderPassIcon() string { return PassStyle.Render(IconPass) }
func RenderWarnIcon() string { return WarnStyle.Render(IconWarn) }
func RenderFailIcon() string { return FailStyle.Render(IconFail) }
func RenderSkipIcon() string { return MutedStyle.Render(IconSkip) }
func RenderInfoIcon() string { return AccentStyle.Render(IconInfo) }

// StatusStyle returns the style for a workflow status: green once merged
// or approved, red when rejected, yellow while waiting.
func StatusStyle(s types.Status) lipgloss.Style {
	switch s {
	case types.StatusMerged, types.StatusHumanApproved:
		return PassStyle
	case types.StatusLLMApproved:
		return AccentStyle
	case types.StatusLLMRejected, types.StatusHumanRejected:
		return FailStyle
	default:
		return WarnStyle
	}
}

// RenderStatus renders a status with its style.
func RenderStatus(s types.Status) string {
	return StatusStyle(s).Render(string(s))
}

// RiskStyle returns the style for a risk level.
func RiskStyle(r types.RiskLevel) lipgloss.Style {
	switch r {
	case types.RiskSafe:
		return PassStyle
	case types.RiskLow:
		return MutedStyle
	case types.RiskMedium:
		return WarnStyle
	default:
		return FailStyle
	}
}

// RenderRisk renders a risk level with its style.
func RenderRisk(r types.RiskLevel) string {
	return RiskStyle(r).Render(string(r))
}

// StatusIcon returns the icon for a status.
func StatusIcon(s types.Status) string {
	switch {
	case s == types.StatusMerged:
		return RenderPassIcon()
	case s.IsRejection():
		return RenderFailIcon()
	case s == types.StatusPendingLLM:
		return RenderSkipIcon()
	default:
		return RenderInfoIcon()
	}
}
