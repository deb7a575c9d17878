package export

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

const timeLayout = "Jan 2, 2006 15:04"

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: Georgia, serif; max-width: 46rem; margin: 2rem auto; color: #222; line-height: 1.55; }
article { border-bottom: 1px solid #ddd; padding-bottom: 1.5rem; margin-bottom: 1.5rem; }
.meta { color: #777; font-size: 0.85rem; }
.human { margin: 0.75rem 0; }
.assistant { margin: 0.75rem 0 0.75rem 1.5rem; padding-left: 0.75rem; border-left: 3px solid #c9b8e8; color: #444; }
.assistant.annotation { border-left-color: #e8d2a6; font-style: italic; }
.tool { margin-left: 1.5rem; color: #888; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>%s</h1>
`

// Markdown renders one snapshot as a markdown document.
func Markdown(s Snapshot) string {
	var b strings.Builder
	title := s.Title
	if title == "" {
		title = "Untitled entry"
	}
	fmt.Fprintf(&b, "## %s\n\n", title)

	var meta []string
	if !s.CreatedAt.IsZero() {
		meta = append(meta, s.CreatedAt.Format(timeLayout))
	}
	if s.Folder != "" {
		meta = append(meta, s.Folder)
	}
	tags := append(append(append([]string(nil), s.Tags...), s.TopicTags...), s.EmotionTags...)
	if len(tags) > 0 {
		meta = append(meta, "#"+strings.Join(tags, " #"))
	}
	if len(meta) > 0 {
		fmt.Fprintf(&b, "*%s*\n\n", strings.Join(meta, " · "))
	}

	for _, m := range s.Messages {
		switch {
		case m.ToolCall != nil:
			label := m.ToolCall.Title
			if label == "" {
				label = strings.TrimSpace(m.Content)
			}
			fmt.Fprintf(&b, "> `%s` %s\n\n", m.ToolCall.Kind, label)
		case m.Sender == "human":
			b.WriteString(strings.TrimSpace(m.Content))
			b.WriteString("\n\n")
		default:
			for _, line := range strings.Split(strings.TrimSpace(m.Content), "\n") {
				b.WriteString("> ")
				b.WriteString(line)
				b.WriteByte('\n')
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// WriteHTML renders the archive as a single standalone page. Raw HTML in
// message content is escaped.
func WriteHTML(w io.Writer, title string, a Archive) error {
	escaped := html.EscapeString(title)
	if _, err := fmt.Fprintf(w, pageHead, escaped, escaped); err != nil {
		return err
	}
	if a.Memo != nil && a.Memo.Summary != "" {
		if err := section(w, "memo", "### What I know so far\n\n"+a.Memo.Summary); err != nil {
			return err
		}
	}
	for _, s := range a.Entries {
		if err := section(w, "entry", Markdown(s)); err != nil {
			return fmt.Errorf("render %s: %w", s.EntryID, err)
		}
	}
	_, err := io.WriteString(w, "</body>\n</html>\n")
	return err
}

func section(w io.Writer, class, md string) error {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "<article class=%q>\n", class); err != nil {
		return err
	}
	if _, err := buf.WriteTo(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</article>\n")
	return err
}
