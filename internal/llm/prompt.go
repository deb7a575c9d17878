package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
)

func clipText(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// clipTail keeps the most recent limit runes, which is what matters for a
// conversation that grows at the end.
func clipTail(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[len(runes)-limit:])
}

// ClipTurns drops the oldest turns until the total content fits the prompt
// budget. The newest turn is always kept, trimmed from the front if needed.
func ClipTurns(turns []Turn) []Turn {
	total := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		size := len(turns[i].Content)
		if total+size > maxContextChars && start < len(turns) {
			break
		}
		total += size
		start = i
	}
	out := append([]Turn(nil), turns[start:]...)
	if len(out) == 1 {
		out[0].Content = clipTail(out[0].Content, maxContextChars)
	}
	return out
}

// JournalContext is everything the journaling prompt needs besides the turns.
type JournalContext struct {
	Memo          string
	EntryID       string
	EntryTitle    string
	Folders       []string
	UserRequested bool
	Now           time.Time
}

var toneList = strings.Join([]string{
	string(action.ToneNeutral), string(action.ToneWarm), string(action.ToneCurious),
	string(action.TonePlayful), string(action.ToneReflective), string(action.ToneEncouraging),
	string(action.ToneConcerned),
}, "|")

// BuildJournalPrompt renders the system prompt for a journaling dispatch.
func BuildJournalPrompt(jc JournalContext) string {
	var b strings.Builder
	b.WriteString("You are a quiet companion living in the margins of someone's private journal.\n")
	b.WriteString("Most of the time the right move is to stay silent and let them write. ")
	b.WriteString("Speak only when you have something genuinely useful: a gentle question, a pattern you noticed, a connection to an earlier entry.\n\n")

	if jc.UserRequested {
		b.WriteString("The writer explicitly asked for your input. You MUST include at least one response.\n\n")
	} else {
		b.WriteString("The writer did not ask for input. Returning an empty responses array is expected and welcome.\n\n")
	}

	now := jc.Now
	if now.IsZero() {
		now = time.Now()
	}
	fmt.Fprintf(&b, "Current time: %s\n", now.Format("Monday, 2 January 2006 15:04"))
	if jc.EntryID != "" {
		title := jc.EntryTitle
		if title == "" {
			title = "untitled"
		}
		fmt.Fprintf(&b, "Current entry: %s (id %s). Use append_to_entry with this id.\n", title, jc.EntryID)
	} else {
		b.WriteString("There is no current entry yet. Use create_new_entry unless the text clearly belongs to an earlier entry.\n")
	}
	if len(jc.Folders) > 0 {
		fmt.Fprintf(&b, "Existing folders: %s\n", strings.Join(jc.Folders, ", "))
	}
	if memo := clipText(jc.Memo, maxMemoChars); memo != "" {
		b.WriteString("\nWhat you remember about the writer:\n")
		b.WriteString(memo)
		b.WriteRune('\n')
	}

	b.WriteString(`
Reply with ONLY a JSON object of this shape:
{
  "responses": [{"content": "", "type": "conversational|annotation", "tone": "` + toneList + `", "linked_entry_id": ""}],
  "tool_call": {"type": "", "title": "", "data": {}},
  "emotion_tags": [""],
  "topic_tags": [""],
  "folder_suggestion": "",
  "entry_title_suggestion": "",
  "context_memo_update": "",
  "database_action": {"type": "create_new_entry|append_to_entry|link_to_existing", "entry_id": ""}
}
Omit tool_call unless a widget clearly helps. context_memo_update replaces the memory above, so include everything worth keeping or leave it empty.`)
	return b.String()
}

// ContinuationCandidate is a recent entry offered to the continuation prompt.
type ContinuationCandidate struct {
	ID      string
	Title   string
	Excerpt string
	Updated time.Time
}

// BuildContinuationPrompt asks whether text continues one of the candidates.
func BuildContinuationPrompt(text string, candidates []ContinuationCandidate, memo string) (string, []Turn) {
	var b strings.Builder
	b.WriteString("You decide whether a new piece of journal writing continues a recent entry.\n")
	b.WriteString("Only say yes when the new text clearly picks up the same thread.\n")
	if memo = clipText(memo, maxMemoChars/4); memo != "" {
		b.WriteString("\nBackground on the writer:\n")
		b.WriteString(memo)
		b.WriteRune('\n')
	}
	b.WriteString("\nRecent entries:\n")
	for _, c := range candidates {
		title := c.Title
		if title == "" {
			title = "untitled"
		}
		fmt.Fprintf(&b, "- id %s | %s | updated %s\n  %s\n", c.ID, title, c.Updated.Format(time.RFC3339), clipText(c.Excerpt, maxExcerptChars))
	}
	b.WriteString(`
Return ONLY JSON: {"is_continuation": true|false, "entry_id": "", "confidence": 0.0}`)
	return b.String(), []Turn{{Role: RoleUser, Content: clipText(text, maxExcerptChars*4)}}
}

// BuildTaggingPrompt is used when post-processing imported conversations.
// memo is the current context memo; the model may only extend it.
func BuildTaggingPrompt(title, source, memo string, folders []string) string {
	var b strings.Builder
	b.WriteString("You are filing an imported conversation into a personal journal.\n")
	b.WriteString("Do not reply to the conversation. Leave responses empty.\n")
	if title != "" {
		fmt.Fprintf(&b, "Conversation title: %s\n", title)
	}
	if source != "" {
		fmt.Fprintf(&b, "Imported from: %s\n", source)
	}
	if len(folders) > 0 {
		fmt.Fprintf(&b, "Existing folders: %s\n", strings.Join(folders, ", "))
	}
	if memo = clipText(memo, maxMemoChars); memo != "" {
		b.WriteString("\nWhat you already know about the writer:\n")
		b.WriteString(memo)
		b.WriteString("\n")
	}
	b.WriteString(`
Return ONLY JSON:
{"responses": [], "emotion_tags": [""], "topic_tags": [""], "folder_suggestion": "", "entry_title_suggestion": "", "context_memo_update": "", "database_action": {"type": "create_new_entry"}}
context_memo_update replaces what you already know, so keep everything above and add only lasting facts about the writer, or leave it empty.`)
	return b.String()
}
