// Package compaction expands a compacted conversation export back into the
// ordered turns it collapsed.
//
// A compacted blob looks like:
//
//	[Compacted conversation]
//	Human: ...
//	Assistant: ...
//	Tool result: ...
//	========================================
//
// Markers only count at the start of a line, so marker-like text inside a
// message body does not split it.
package compaction

import (
	"strings"
)

// Role is the conversational author of a reconstructed turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	HeaderMarker     = "[Compacted conversation]"
	HumanMarker      = "Human:"
	AssistantMarker  = "Assistant:"
	ToolResultMarker = "Tool result:"

	FooterRune   = '='
	footerMinRun = 20
	footerWidth  = 40

	// ToolSeparator is the visible line placed between an assistant turn and
	// the tool output folded into it.
	ToolSeparator = "--- tool result ---"
)

// Turn is one reconstructed message.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type segmentKind int

const (
	segmentPreamble segmentKind = iota
	segmentHuman
	segmentAssistant
	segmentToolResult
)

type segment struct {
	kind segmentKind
	text string
}

// IsCompacted reports whether text starts with the compaction header.
func IsCompacted(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		return strings.HasPrefix(trimmed, HeaderMarker)
	}
	return false
}

// Parse reconstructs the ordered turns of a compacted blob. It never fails:
// text without recognisable markers yields at most one assistant turn. Empty
// segments are dropped before same-role neighbours merge, so the turns that
// remain always alternate.
func Parse(blob string) []Turn {
	body := stripFrame(blob)
	segments := splitSegments(body)

	var turns []Turn
	for _, seg := range segments {
		text := strings.TrimSpace(seg.text)
		if text == "" {
			continue
		}
		switch seg.kind {
		case segmentHuman:
			turns = appendTurn(turns, RoleUser, text)
		case segmentToolResult:
			if n := len(turns); n > 0 && turns[n-1].Role == RoleAssistant {
				turns[n-1].Content = turns[n-1].Content + "\n\n" + ToolSeparator + "\n" + text
				continue
			}
			turns = appendTurn(turns, RoleAssistant, text)
		default:
			// Unmarked preamble is summary text written by the exporting assistant.
			turns = appendTurn(turns, RoleAssistant, text)
		}
	}
	return turns
}

// appendTurn adds a turn, merging it into the previous one when both share a role.
func appendTurn(turns []Turn, role Role, text string) []Turn {
	if n := len(turns); n > 0 && turns[n-1].Role == role {
		turns[n-1].Content = turns[n-1].Content + "\n\n" + text
		return turns
	}
	return append(turns, Turn{Role: role, Content: text})
}

// Render wraps turns in the compaction template. Parse(Render(turns)) returns
// the same turns for any output of Parse.
func Render(turns []Turn) string {
	var b strings.Builder
	b.WriteString(HeaderMarker)
	b.WriteString("\n\n")
	for _, turn := range turns {
		marker := AssistantMarker
		if turn.Role == RoleUser {
			marker = HumanMarker
		}
		b.WriteString(marker)
		b.WriteRune(' ')
		b.WriteString(strings.TrimSpace(turn.Content))
		b.WriteString("\n\n")
	}
	b.WriteString(strings.Repeat(string(FooterRune), footerWidth))
	b.WriteRune('\n')
	return b.String()
}

func stripFrame(blob string) string {
	lines := strings.Split(strings.ReplaceAll(blob, "\r\n", "\n"), "\n")

	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	if start < len(lines) {
		first := strings.TrimSpace(lines[start])
		if strings.HasPrefix(first, HeaderMarker) {
			rest := strings.TrimSpace(strings.TrimPrefix(first, HeaderMarker))
			if rest == "" {
				start++
			} else {
				lines[start] = rest
			}
		}
	}

	end := len(lines)
	for end > start {
		trimmed := strings.TrimSpace(lines[end-1])
		if trimmed == "" || isFooterLine(trimmed) {
			end--
			continue
		}
		break
	}
	if end <= start {
		return ""
	}
	return strings.Join(lines[start:end], "\n")
}

func isFooterLine(line string) bool {
	if len(line) < footerMinRun {
		return false
	}
	return strings.Trim(line, string(FooterRune)) == ""
}

func splitSegments(body string) []segment {
	var (
		segments []segment
		current  = segment{kind: segmentPreamble}
		buf      strings.Builder
	)
	flush := func() {
		current.text = buf.String()
		segments = append(segments, current)
		buf.Reset()
	}

	for _, line := range strings.Split(body, "\n") {
		if kind, rest, ok := matchMarker(line); ok {
			flush()
			current = segment{kind: kind}
			buf.WriteString(rest)
			continue
		}
		if buf.Len() > 0 || current.kind != segmentPreamble {
			buf.WriteRune('\n')
		}
		buf.WriteString(line)
	}
	flush()
	return segments
}

func matchMarker(line string) (segmentKind, string, bool) {
	switch {
	case strings.HasPrefix(line, HumanMarker):
		return segmentHuman, strings.TrimPrefix(line, HumanMarker), true
	case strings.HasPrefix(line, AssistantMarker):
		return segmentAssistant, strings.TrimPrefix(line, AssistantMarker), true
	case strings.HasPrefix(line, ToolResultMarker):
		return segmentToolResult, strings.TrimPrefix(line, ToolResultMarker), true
	default:
		return segmentPreamble, "", false
	}
}
