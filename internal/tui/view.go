package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jacobB1290/JwebAPP-sub000/internal/queue"
	"github.com/jacobB1290/JwebAPP-sub000/internal/store"
)

type keyHint struct {
	Key         string
	Description string
}

var writeHints = []keyHint{
	{Key: "ctrl+s", Description: "send now"},
	{Key: "ctrl+e", Description: "edit last"},
	{Key: "ctrl+n", Description: "new entry"},
	{Key: "ctrl+l", Description: "entries"},
	{Key: "ctrl+o", Description: "import"},
	{Key: "ctrl+c", Description: "quit"},
}

func (m *model) View() string {
	switch m.stage {
	case stageEntries:
		return joinNonEmpty([]string{m.heroView(), m.entriesView(), m.messagesView()})
	case stageImport:
		return joinNonEmpty([]string{m.heroView(), m.viewport.View(), m.dialogView("Import a shared conversation", m.urlInput.View()), m.messagesView()})
	case stageEdit:
		return joinNonEmpty([]string{m.heroView(), m.viewport.View(), m.dialogView("Edit and resend", m.editInput.View()), m.messagesView()})
	default:
		return joinNonEmpty([]string{m.heroView(), m.viewport.View(), m.composer.View(), m.statusView(), m.messagesView(), m.hintsView()})
	}
}

func (m *model) heroView() string {
	title := "Journal"
	if _, entry := m.config.Queue.Entry(); entry != "" {
		title = entry
	}
	return lipgloss.JoinVertical(lipgloss.Left, heroTitleStyle.Render(title), taglineStyle.Render(heroTagline))
}

func (m *model) statusView() string {
	q := m.config.Queue
	stats := []string{stateLabel(q.State(), m.spinner.View())}
	if n := q.Pending(); n > 0 {
		stats = append(stats, fmt.Sprintf("%d waiting", n))
	}
	if m.trigger.Pending() {
		stats = append(stats, "sending when you pause")
	}
	if m.config.Model != "" {
		stats = append(stats, m.config.Model)
	}
	for kind := range m.running {
		stats = append(stats, string(kind)+"…")
	}
	return statusBarStyle.Render(strings.Join(stats, "  •  "))
}

func stateLabel(state queue.State, spin string) string {
	switch state {
	case queue.Dispatching:
		return spin + " companion is reading"
	case queue.Queued:
		return "queued"
	case queue.Error:
		return "last send failed"
	default:
		return "idle"
	}
}

func (m *model) messagesView() string {
	var parts []string
	if m.errorMessage != "" {
		parts = append(parts, errorStyle.Render(m.errorMessage))
	}
	if m.infoMessage != "" {
		parts = append(parts, helperStyle.Render(m.infoMessage))
	}
	return strings.Join(parts, "\n")
}

func (m *model) hintsView() string {
	hints := make([]string, 0, len(writeHints))
	for _, h := range writeHints {
		hints = append(hints, keyStyle.Render(h.Key)+" "+keyDescStyle.Render(h.Description))
	}
	return strings.Join(hints, "  ")
}

func (m *model) dialogView(title, body string) string {
	content := joinNonEmpty([]string{
		sectionHeaderStyle.Render(title),
		body,
		helperStyle.Render("Enter to confirm, Esc to cancel."),
	})
	return dialogStyle.Render(content)
}

func (m *model) entriesView() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Entries"))
	b.WriteRune('\n')
	if m.running[jobKindEntries] {
		b.WriteString(helperStyle.Render(m.spinner.View() + " loading…"))
		return b.String()
	}
	if len(m.entries) == 0 {
		b.WriteString(helperStyle.Render("No entries yet. Esc to go back."))
		return b.String()
	}
	for idx, e := range m.entries {
		line := fmt.Sprintf("%s  %s", e.UpdatedAt.Local().Format("Jan 02 15:04"), previewText(entryTitle(e.Title), entryPreviewLimit))
		if e.Status == store.StatusPending || e.Status == store.StatusFailed {
			line += helperStyle.Render(fmt.Sprintf("  (%s)", e.Status))
		}
		if idx == m.entryCursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteRune('\n')
	}
	b.WriteString(helperStyle.Render("↑/↓ to move, Enter to continue an entry, Esc to go back."))
	return b.String()
}
