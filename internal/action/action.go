// Package action defines the canonical shape every model reply is converted
// into before queue, import, or UI code looks at it.
package action

import "strings"

// Kind separates direct replies from short observational notes.
type Kind string

const (
	KindConversational Kind = "conversational"
	KindAnnotation     Kind = "annotation"
)

// Tone is the emotional register a response is rendered with.
type Tone string

const (
	ToneNeutral     Tone = "neutral"
	ToneWarm        Tone = "warm"
	ToneCurious     Tone = "curious"
	TonePlayful     Tone = "playful"
	ToneReflective  Tone = "reflective"
	ToneEncouraging Tone = "encouraging"
	ToneConcerned   Tone = "concerned"
)

var knownTones = map[Tone]struct{}{
	ToneNeutral:     {},
	ToneWarm:        {},
	ToneCurious:     {},
	TonePlayful:     {},
	ToneReflective:  {},
	ToneEncouraging: {},
	ToneConcerned:   {},
}

// ParseTone maps free-form model output onto the tone enum. Anything it does
// not recognise becomes ToneNeutral.
func ParseTone(value string) Tone {
	tone := Tone(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := knownTones[tone]; ok {
		return tone
	}
	return ToneNeutral
}

// ParseKind maps model output onto a response kind, defaulting to conversational.
func ParseKind(value string) Kind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "annotation", "note", "observation":
		return KindAnnotation
	default:
		return KindConversational
	}
}

// DBKind is the persistence decision the model makes for the current text.
type DBKind string

const (
	CreateNewEntry DBKind = "create_new_entry"
	AppendToEntry  DBKind = "append_to_entry"
	LinkToExisting DBKind = "link_to_existing"
)

// ParseDBKind normalizes the database action name. Unknown values fall back
// to create_new_entry; the queue corrects that when an entry is already active.
func ParseDBKind(value string) DBKind {
	switch DBKind(strings.ToLower(strings.TrimSpace(value))) {
	case AppendToEntry:
		return AppendToEntry
	case LinkToExisting:
		return LinkToExisting
	default:
		return CreateNewEntry
	}
}

// Response is one message the companion wants to show.
type Response struct {
	Content       string `json:"content"`
	Kind          Kind   `json:"kind"`
	Tone          Tone   `json:"tone"`
	LinkedEntryID string `json:"linkedEntryId,omitempty"`
}

// DatabaseAction tells the queue where the text belongs.
type DatabaseAction struct {
	Kind    DBKind `json:"kind"`
	EntryID string `json:"entryId,omitempty"`
}

// Outcome distinguishes a reply from a deliberate silence.
type Outcome int

const (
	Silent Outcome = iota
	Responded
)

func (o Outcome) String() string {
	if o == Responded {
		return "responded"
	}
	return "silent"
}

// Recovery records which tier of text-to-JSON recovery produced the action.
type Recovery int

const (
	StrictJSON Recovery = iota
	RecoveredJSON
	PlainTextFallback
)

func (r Recovery) String() string {
	switch r {
	case StrictJSON:
		return "strict_json"
	case RecoveredJSON:
		return "recovered_json"
	default:
		return "plain_text_fallback"
	}
}

// Action is the canonical, provider-independent result of one model call.
type Action struct {
	Responses            []Response     `json:"responses"`
	ToolCall             *ToolCall      `json:"toolCall,omitempty"`
	EmotionTags          []string       `json:"emotionTags"`
	TopicTags            []string       `json:"topicTags"`
	FolderSuggestion     string         `json:"folderSuggestion,omitempty"`
	EntryTitleSuggestion string         `json:"entryTitleSuggestion,omitempty"`
	ContextMemoUpdate    string         `json:"contextMemoUpdate,omitempty"`
	Database             DatabaseAction `json:"databaseAction"`
	Recovery             Recovery       `json:"-"`
}

// Outcome reports Silent when there is nothing to show: no responses and no tool call.
func (a Action) Outcome() Outcome {
	if len(a.Responses) == 0 && a.ToolCall == nil {
		return Silent
	}
	return Responded
}

// EnforceEntry pins the action to an already-active entry. A caller that
// supplied an entry id never gets create_new_entry back.
func (a *Action) EnforceEntry(entryID string) {
	if entryID == "" {
		return
	}
	if a.Database.Kind == CreateNewEntry || a.Database.Kind == "" {
		a.Database = DatabaseAction{Kind: AppendToEntry, EntryID: entryID}
		return
	}
	if a.Database.Kind == AppendToEntry && a.Database.EntryID == "" {
		a.Database.EntryID = entryID
	}
}

// Fallback wraps plain prose as a single neutral conversational response.
func Fallback(text string) Action {
	text = strings.TrimSpace(text)
	act := Action{
		EmotionTags: []string{},
		TopicTags:   []string{},
		Database:    DatabaseAction{Kind: CreateNewEntry},
		Recovery:    PlainTextFallback,
	}
	if text != "" {
		act.Responses = []Response{{Content: text, Kind: KindConversational, Tone: ToneNeutral}}
	}
	return act
}

// NormalizeTags trims, lower-cases, and deduplicates tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	result := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		tag = strings.TrimPrefix(tag, "#")
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		result = append(result, tag)
	}
	return result
}

// MergeTags returns the union of both sets in first-seen order.
func MergeTags(existing, incoming []string) []string {
	return NormalizeTags(append(append([]string(nil), existing...), incoming...))
}
