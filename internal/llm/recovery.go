package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
)

var fencedBlockRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

// envelope is the JSON object the journaling prompt asks for.
type envelope struct {
	Responses []struct {
		Content       string `json:"content"`
		Type          string `json:"type"`
		Kind          string `json:"kind"`
		Tone          string `json:"tone"`
		LinkedEntryID string `json:"linked_entry_id"`
	} `json:"responses"`
	ToolCall *struct {
		Type  string         `json:"type"`
		Kind  string         `json:"kind"`
		Title string         `json:"title"`
		Data  map[string]any `json:"data"`
	} `json:"tool_call"`
	EmotionTags          []string `json:"emotion_tags"`
	TopicTags            []string `json:"topic_tags"`
	FolderSuggestion     string   `json:"folder_suggestion"`
	EntryTitleSuggestion string   `json:"entry_title_suggestion"`
	ContextMemoUpdate    string   `json:"context_memo_update"`
	DatabaseAction       struct {
		Type    string `json:"type"`
		EntryID string `json:"entry_id"`
	} `json:"database_action"`
}

var envelopeKeys = []string{
	"responses", "tool_call", "emotion_tags", "topic_tags", "folder_suggestion",
	"entry_title_suggestion", "context_memo_update", "database_action",
}

// ParseEnvelope converts model text into an action. It tries a fenced code
// block first, then the raw text as JSON, then the outermost brace slice, and
// finally wraps the prose as a single neutral response. It never fails.
func ParseEnvelope(text string) action.Action {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return action.Fallback("")
	}
	for _, c := range recoveryCandidates(trimmed) {
		if env, ok := decodeEnvelope(c.text); ok {
			return env.toAction(c.recovery)
		}
	}
	return action.Fallback(trimmed)
}

// DecodeJSON fills v from the first JSON object found in text using the same
// tiers as ParseEnvelope.
func DecodeJSON(text string, v any) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return errors.New("empty reply")
	}
	var lastErr error
	for _, c := range recoveryCandidates(trimmed) {
		if err := json.Unmarshal([]byte(c.text), v); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

type candidate struct {
	text     string
	recovery action.Recovery
}

// recoveryCandidates lists the JSON tiers in the order they are tried: fenced
// block, raw text, brace slice. A brace slice equal to the raw text is skipped.
func recoveryCandidates(text string) []candidate {
	var out []candidate
	if match := fencedBlockRe.FindStringSubmatch(text); len(match) == 2 {
		if block := strings.TrimSpace(match[1]); block != "" {
			out = append(out, candidate{block, action.RecoveredJSON})
		}
	}
	out = append(out, candidate{text, action.StrictJSON})
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start && (start > 0 || end < len(text)-1) {
			out = append(out, candidate{text[start : end+1], action.RecoveredJSON})
		}
	}
	return out
}

func decodeEnvelope(candidate string) (envelope, bool) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &keys); err != nil {
		return envelope{}, false
	}
	known := false
	for _, key := range envelopeKeys {
		if _, ok := keys[key]; ok {
			known = true
			break
		}
	}
	if !known {
		return envelope{}, false
	}
	var env envelope
	if err := json.Unmarshal([]byte(candidate), &env); err != nil {
		return envelope{}, false
	}
	return env, true
}

func (env envelope) toAction(recovery action.Recovery) action.Action {
	act := action.Action{
		EmotionTags:          action.NormalizeTags(env.EmotionTags),
		TopicTags:            action.NormalizeTags(env.TopicTags),
		FolderSuggestion:     strings.TrimSpace(env.FolderSuggestion),
		EntryTitleSuggestion: strings.TrimSpace(env.EntryTitleSuggestion),
		ContextMemoUpdate:    strings.TrimSpace(env.ContextMemoUpdate),
		Database: action.DatabaseAction{
			Kind:    action.ParseDBKind(env.DatabaseAction.Type),
			EntryID: strings.TrimSpace(env.DatabaseAction.EntryID),
		},
		Recovery: recovery,
	}
	for _, r := range env.Responses {
		content := strings.TrimSpace(r.Content)
		if content == "" {
			continue
		}
		kind := r.Kind
		if kind == "" {
			kind = r.Type
		}
		act.Responses = append(act.Responses, action.Response{
			Content:       content,
			Kind:          action.ParseKind(kind),
			Tone:          action.ParseTone(r.Tone),
			LinkedEntryID: strings.TrimSpace(r.LinkedEntryID),
		})
	}
	if env.ToolCall != nil {
		name := env.ToolCall.Kind
		if name == "" {
			name = env.ToolCall.Type
		}
		input := map[string]any{}
		for k, v := range env.ToolCall.Data {
			input[k] = v
		}
		if env.ToolCall.Title != "" {
			input["title"] = env.ToolCall.Title
		}
		if raw, err := json.Marshal(input); err == nil {
			if call, ok := normalizeToolCall(name, raw); ok {
				act.ToolCall = call
			}
		}
	}
	return act
}
