package llm

import (
	"testing"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
)

func TestParseEnvelopeStrict(t *testing.T) {
	act := ParseEnvelope(`{
		"responses": [{"content": "How did the interview go?", "type": "conversational", "tone": "curious"},
		              {"content": "", "type": "annotation"}],
		"emotion_tags": ["Anxious", "anxious"],
		"topic_tags": ["#career"],
		"folder_suggestion": " Work ",
		"entry_title_suggestion": "Interview day",
		"context_memo_update": "Interviewing at a bakery.",
		"database_action": {"type": "append_to_entry", "entry_id": "e9"}
	}`)
	if act.Recovery != action.StrictJSON {
		t.Fatalf("expected strict_json, got %s", act.Recovery)
	}
	if len(act.Responses) != 1 || act.Responses[0].Tone != action.ToneCurious {
		t.Fatalf("unexpected responses %+v", act.Responses)
	}
	if len(act.EmotionTags) != 1 || act.EmotionTags[0] != "anxious" || act.TopicTags[0] != "career" {
		t.Fatalf("unexpected tags %v %v", act.EmotionTags, act.TopicTags)
	}
	if act.FolderSuggestion != "Work" || act.EntryTitleSuggestion != "Interview day" {
		t.Fatalf("unexpected suggestions %+v", act)
	}
	if act.Database.Kind != action.AppendToEntry || act.Database.EntryID != "e9" {
		t.Fatalf("unexpected database action %+v", act.Database)
	}
}

func TestParseEnvelopeBraceSlice(t *testing.T) {
	act := ParseEnvelope(`Here you go: {"responses":[{"content":"noted","tone":"sarcastic"}]} hope that helps`)
	if act.Recovery != action.RecoveredJSON {
		t.Fatalf("expected recovered_json, got %s", act.Recovery)
	}
	if act.Responses[0].Tone != action.ToneNeutral || act.Responses[0].Kind != action.KindConversational {
		t.Fatalf("unknown tone should default to neutral, got %+v", act.Responses[0])
	}
}

func TestParseEnvelopeIgnoresForeignJSON(t *testing.T) {
	act := ParseEnvelope(`{"weather": "sunny"}`)
	if act.Recovery != action.PlainTextFallback {
		t.Fatalf("non-envelope JSON should fall back, got %s", act.Recovery)
	}
}

func TestParseEnvelopeEmptyTextIsSilent(t *testing.T) {
	act := ParseEnvelope("   ")
	if act.Recovery != action.PlainTextFallback || act.Outcome() != action.Silent {
		t.Fatalf("expected silent fallback, got %s %s", act.Recovery, act.Outcome())
	}
}

func TestParseEnvelopeEmbeddedToolCall(t *testing.T) {
	act := ParseEnvelope(`{"responses":[],"tool_call":{"type":"link_card","data":{"url":"https://example.com"}}}`)
	if act.ToolCall == nil || act.ToolCall.Kind != action.ToolLinkCard {
		t.Fatalf("expected link card, got %+v", act.ToolCall)
	}
	if act.ToolCall.Title != "https://example.com" {
		t.Fatalf("link card title should default to url, got %q", act.ToolCall.Title)
	}
}

func TestDecodeJSONUsesRecoveryTiers(t *testing.T) {
	var out struct {
		IsContinuation bool    `json:"is_continuation"`
		Confidence     float64 `json:"confidence"`
	}
	fence := "```"
	if err := DecodeJSON("thinking...\n"+fence+"\n{\"is_continuation\":true,\"confidence\":0.9}\n"+fence, &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !out.IsContinuation || out.Confidence != 0.9 {
		t.Fatalf("unexpected decode %+v", out)
	}
	if err := DecodeJSON("no json here", &out); err == nil {
		t.Fatalf("expected error for prose")
	}
}

func TestParseEnvelopeTriesFencedBlockFirst(t *testing.T) {
	fence := "```"
	act := ParseEnvelope(fence + "json\n{\"responses\":[]}\n" + fence)
	if act.Recovery != action.RecoveredJSON || len(act.Responses) != 0 {
		t.Fatalf("expected recovered empty reply, got %s %+v", act.Recovery, act.Responses)
	}

	raw := `{"responses":[{"content":"outer"}],"topic_tags":["x"]} ` + fence + "\n" + `{"responses":[{"content":"inner"}]}` + "\n" + fence
	act = ParseEnvelope(raw)
	if act.Recovery != action.RecoveredJSON || act.Responses[0].Content != "inner" {
		t.Fatalf("fenced block should win over surrounding text, got %s %+v", act.Recovery, act.Responses)
	}

	act = ParseEnvelope("just chatting")
	if act.Recovery != action.PlainTextFallback || act.Responses[0].Content != "just chatting" || act.Responses[0].Tone != action.ToneNeutral {
		t.Fatalf("prose should fall back to a neutral reply, got %s %+v", act.Recovery, act.Responses)
	}
}
