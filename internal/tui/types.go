package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jacobB1290/JwebAPP-sub000/internal/importer"
	"github.com/jacobB1290/JwebAPP-sub000/internal/queue"
	"github.com/jacobB1290/JwebAPP-sub000/internal/store"
)

type stage int

const (
	stageWrite stage = iota
	stageEntries
	stageImport
	stageEdit
)

const heroTagline = "Write freely. The companion reads along."

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
	entryListLimit            = 50
	entryPreviewLimit         = 60
	sentBuffer                = 16
)

type queueEventMsg struct {
	Event queue.Event
}

type sentMsg struct {
	Job queue.Job
}

type backfillReportMsg struct {
	Report importer.Report
}

type entriesLoadedMsg struct {
	entries []store.Entry
}

type entryOpenedMsg struct {
	entry    store.Entry
	messages []store.Message
}

type importDoneMsg struct {
	url    string
	result importer.Result
}

var (
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helperStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	humanStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
	companionStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#c4a7e7")).PaddingLeft(2)
	annotationStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f6c177")).Italic(true).PaddingLeft(2)
	toolStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ccfd8")).PaddingLeft(2)
	staleStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Strikethrough(true).PaddingLeft(2)
	historyStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))

	heroAccentColor = lipgloss.Color("#ff8c00")
	heroTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(heroAccentColor)
	taglineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb347")).Italic(true)
	statusBarStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	keyStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	keyDescStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
	cursorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
	dialogStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(0, 1)
)
