package llm

import (
	"encoding/json"
	"testing"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
)

func TestToolSpecsCoverEveryKind(t *testing.T) {
	specs := ToolSpecs()
	if len(specs) != len(action.ToolKinds) {
		t.Fatalf("expected %d specs, got %d", len(action.ToolKinds), len(specs))
	}
	for _, spec := range specs {
		if !action.ToolKind(spec.Name).Valid() {
			t.Fatalf("spec %s is not a known kind", spec.Name)
		}
		if _, ok := toolNormalizers[action.ToolKind(spec.Name)]; !ok {
			t.Fatalf("no normalizer for %s", spec.Name)
		}
		if _, ok := spec.Schema["properties"].(map[string]any); !ok {
			t.Fatalf("spec %s has no properties", spec.Name)
		}
	}
}

func TestNormalizeToolCallPerKind(t *testing.T) {
	cases := []struct {
		name  string
		input string
		title string
		key   string
	}{
		{"load_entry", `{"entry_id":"e1"}`, "Previous entry", "entryId"},
		{"chart", `{"labels":["mon","tue"],"values":[6,7.5]}`, "Chart", "values"},
		{"prompt_card", `{"title":"Tonight","prompt":"What went well?"}`, "Tonight", "prompt"},
		{"table", `{"columns":["day","hours"],"rows":[["mon",6],["tue","7"]]}`, "Table", "rows"},
		{"tracker", `{"metric":"sleep","value":7,"unit":"h"}`, "Tracker", "metric"},
		{"calendar_view", `{"events":[{"date":"2026-10-20","label":"dentist"},{}]}`, "Calendar", "events"},
	}
	for _, tc := range cases {
		call, ok := normalizeToolCall(tc.name, json.RawMessage(tc.input))
		if !ok {
			t.Fatalf("%s: expected call to normalize", tc.name)
		}
		if call.Title != tc.title {
			t.Fatalf("%s: expected title %q, got %q", tc.name, tc.title, call.Title)
		}
		if _, ok := call.Data[tc.key]; !ok {
			t.Fatalf("%s: missing data key %s in %+v", tc.name, tc.key, call.Data)
		}
	}
}

func TestNormalizeToolCallRejectsIncompleteInput(t *testing.T) {
	for _, tc := range []struct{ name, input string }{
		{"load_entry", `{}`},
		{"checklist", `{"items":[]}`},
		{"link_card", `{"title":"no url"}`},
		{"chart", `not json`},
		{"mystery", `{"items":["x"]}`},
	} {
		if call, ok := normalizeToolCall(tc.name, json.RawMessage(tc.input)); ok {
			t.Fatalf("%s: expected rejection, got %+v", tc.name, call)
		}
	}
}
