package styles

import "github.com/charmbracelet/lipgloss"

// --- Typography ---

var (
	// Title is the main header text style.
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(White)

	// Label is used for field names in detail views.
	Label = lipgloss.NewStyle().
		Foreground(Gray).
		Bold(true)

	// Value is used for field values in detail views.
	Value = lipgloss.NewStyle().
		Foreground(White)

	// MutedText is for hints and less important info.
	MutedText = lipgloss.NewStyle().
			Foreground(Muted)

	// ErrorText is for error messages.
	ErrorText = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	// SuccessText is for changed results.
	SuccessText = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	// WarningText is for warnings and degraded results.
	WarningText = lipgloss.NewStyle().
			Foreground(Yellow).
			Bold(true)

	// TableHeader is used for column headings in list output.
	TableHeader = lipgloss.NewStyle().
			Foreground(Gray).
			Bold(true)
)

// --- Status badges ---

// PowerStyle returns the style for a VM power state.
func PowerStyle(power string) lipgloss.Style {
	switch power {
	case "on":
		return lipgloss.NewStyle().Foreground(Green).Bold(true)
	case "off":
		return lipgloss.NewStyle().Foreground(Red)
	default:
		return lipgloss.NewStyle().Foreground(Gray)
	}
}

// ExistenceStyle returns the style for a VM existence value. Soft-deleted
// machines stand out since they still hold a name.
func ExistenceStyle(existence string) lipgloss.Style {
	switch existence {
	case "deleted":
		return lipgloss.NewStyle().Foreground(Yellow)
	case "absent":
		return lipgloss.NewStyle().Foreground(Muted)
	default:
		return lipgloss.NewStyle().Foreground(White)
	}
}

// PowerIndicator returns a small dot + power text with appropriate color.
func PowerIndicator(power string) string {
	style := PowerStyle(power)
	return style.Render("●") + " " + style.Render(power)
}
