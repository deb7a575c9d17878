package tui

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
	"github.com/jacobB1290/JwebAPP-sub000/internal/queue"
	"github.com/jacobB1290/JwebAPP-sub000/internal/store"
)

type pageLayout struct {
	windowWidth    int
	windowHeight   int
	viewportWidth  int
	viewportHeight int
	composerHeight int
}

func newPageLayout() pageLayout {
	return pageLayout{
		viewportWidth:  80,
		viewportHeight: 16,
		composerHeight: 5,
	}
}

func (l *pageLayout) Update(width, height int) {
	l.windowWidth = width
	l.windowHeight = height
	innerWidth := width - viewportHorizontalPadding
	if innerWidth < minViewportWidth {
		innerWidth = minViewportWidth
	}
	l.viewportWidth = innerWidth
	l.composerHeight = 5
	if height < 24 {
		l.composerHeight = 3
	}
	// hero, status bar, hints and spacing
	const chrome = 7
	usable := height - chrome - l.composerHeight
	if usable < 6 {
		usable = 6
	}
	l.viewportHeight = usable
}

type contentBuilder struct {
	builder strings.Builder
	lines   int
}

func (cb *contentBuilder) WriteString(s string) {
	cb.builder.WriteString(s)
	cb.lines += strings.Count(s, "\n")
}

func (cb *contentBuilder) WriteRune(r rune) {
	cb.builder.WriteRune(r)
	if r == '\n' {
		cb.lines++
	}
}

func (cb *contentBuilder) String() string {
	return cb.builder.String()
}

func (cb *contentBuilder) Line() int {
	return cb.lines
}

// buildStream renders the opened entry's history followed by the live
// session turns.
func buildStream(history []store.Message, turns []queue.Turn, width int, spin string) string {
	cb := &contentBuilder{}
	if len(history) == 0 && len(turns) == 0 {
		cb.WriteString(helperStyle.Render("Start writing below. The companion answers when you pause."))
		cb.WriteRune('\n')
		return cb.String()
	}
	wrap := wrapWidth(width, 4)

	if len(history) > 0 {
		cb.WriteString(sectionHeaderStyle.Render("Earlier"))
		cb.WriteRune('\n')
		for _, msg := range history {
			body := wordwrap.String(strings.TrimSpace(msg.Content), wrap)
			if msg.Sender == store.SenderAssistant {
				body = indentMultiline(body, "  ")
			}
			cb.WriteString(historyStyle.Render(body))
			cb.WriteString("\n\n")
		}
		if len(turns) > 0 {
			cb.WriteString(sectionHeaderStyle.Render("Now"))
			cb.WriteRune('\n')
		}
	}

	for idx, turn := range turns {
		cb.WriteString(renderTurn(turn, wrap, spin))
		if idx < len(turns)-1 {
			cb.WriteString("\n\n")
		} else {
			cb.WriteRune('\n')
		}
	}
	return cb.String()
}

func renderTurn(turn queue.Turn, wrap int, spin string) string {
	body := wordwrap.String(strings.TrimSpace(turn.Content), wrap)
	if turn.Role == queue.HumanTurn {
		out := humanStyle.Render(body)
		switch {
		case turn.Processing:
			out += "\n" + helperStyle.Render(spin+" thinking…")
		case turn.Failed:
			out += "\n" + errorStyle.Render("not answered · ctrl+e to retry")
		}
		return out
	}

	switch {
	case turn.Stale:
		return staleStyle.Render(body)
	case turn.ToolCall != nil:
		return toolStyle.Render(toolLabel(turn.ToolCall))
	case turn.Kind == action.KindAnnotation:
		return annotationStyle.Render(body)
	default:
		return companionStyle.Render(body)
	}
}

func toolLabel(call *action.ToolCall) string {
	title := strings.TrimSpace(call.Title)
	if title == "" {
		title = string(call.Kind)
	}
	return fmt.Sprintf("[%s] %s", strings.ReplaceAll(string(call.Kind), "_", " "), title)
}

func indentMultiline(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func wrapWidth(width, padding int) int {
	if width <= 0 {
		width = 80
	}
	if padding < 0 {
		padding = 0
	}
	available := width - padding
	if available < 20 {
		available = 20
	}
	return available
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}
