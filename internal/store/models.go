package store

import (
	"encoding/json"
	"time"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
)

// ProcessingStatus tracks whether an entry still needs AI post-processing.
type ProcessingStatus string

const (
	StatusLive      ProcessingStatus = "live"
	StatusPending   ProcessingStatus = "pending"
	StatusProcessed ProcessingStatus = "processed"
	StatusFailed    ProcessingStatus = "failed"
)

// Source records where an entry came from.
type Source string

const (
	SourceJournal Source = "journal"
	SourceImport  Source = "import"
)

// ImportedTag is attached to every entry created by the importer.
const ImportedTag = "imported"

// Sender is the author of a stored message.
type Sender string

const (
	SenderHuman     Sender = "human"
	SenderAssistant Sender = "assistant"
)

// MessageType distinguishes human text from the kinds of assistant output.
type MessageType string

const (
	TypeText           MessageType = "text"
	TypeConversational MessageType = "conversational"
	TypeAnnotation     MessageType = "annotation"
	TypeTool           MessageType = "tool"
)

// Folder groups entries by name.
type Folder struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Entry is one journal entry.
type Entry struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	FolderID     string           `json:"folderId,omitempty"`
	Tags         []string         `json:"tags"`
	EmotionTags  []string         `json:"emotionTags"`
	TopicTags    []string         `json:"topicTags"`
	MemoSnapshot string           `json:"memoSnapshot,omitempty"`
	Status       ProcessingStatus `json:"status"`
	Source       Source           `json:"source"`
	SourceURL    string           `json:"sourceUrl,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// NewEntry is the input to CreateEntry.
type NewEntry struct {
	Title       string
	FolderID    string
	Tags        []string
	EmotionTags []string
	TopicTags   []string
	// MemoSnapshot is the context memo as it stood when the entry was made.
	MemoSnapshot string
	Status       ProcessingStatus
	Source       Source
	SourceURL    string
}

// EntryUpdate carries optional changes to an entry. Nil pointers leave the
// field untouched; tag slices are merged into the existing sets.
type EntryUpdate struct {
	Title        *string
	FolderID     *string
	EmotionTags  []string
	TopicTags    []string
	MemoSnapshot *string
	Status       *ProcessingStatus
}

// EntrySummary is an entry plus the opening human message, used to offer
// continuation candidates.
type EntrySummary struct {
	Entry
	FirstHuman string `json:"firstHuman"`
}

// Message is one stored turn of an entry.
type Message struct {
	ID            string           `json:"id"`
	EntryID       string           `json:"entryId"`
	Sender        Sender           `json:"sender"`
	Content       string           `json:"content"`
	Type          MessageType      `json:"type"`
	Tone          action.Tone      `json:"tone,omitempty"`
	LinkedEntryID string           `json:"linkedEntryId,omitempty"`
	ToolCall      *action.ToolCall `json:"toolCall,omitempty"`
	Position      int              `json:"position"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// NewMessage is the input to AppendMessages.
type NewMessage struct {
	Sender        Sender
	Content       string
	Type          MessageType
	Tone          action.Tone
	LinkedEntryID string
	ToolCall      *action.ToolCall
}

// ContextMemo is the singleton long-running summary of the writer.
type ContextMemo struct {
	Summary   string    `json:"summary"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	buf, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(buf)
}

func decodeTags(raw string) []string {
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}
