package queue

import (
	"testing"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
	"github.com/jacobB1290/JwebAPP-sub000/internal/llm"
)

func TestArenaRepliesStayNextToSource(t *testing.T) {
	a := NewArena()
	h1 := a.AddHuman("first")
	h2 := a.AddHuman("second")
	r1 := a.AddAI(h1, action.Response{Content: "reply one"})
	r2 := a.AddTool(h1, &action.ToolCall{Kind: action.ToolChecklist, Title: "todo"})

	var order []TurnID
	for _, turn := range a.Turns() {
		order = append(order, turn.ID)
	}
	want := []TurnID{h1, r1, r2, h2}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("unexpected order %v, want %v", order, want)
		}
	}
	if got, _ := a.Get(h2); got.Content != "second" {
		t.Fatalf("index not maintained after insert: %+v", got)
	}
	if !a.HasContentBefore(h2) || a.HasContentBefore(h1) {
		t.Fatalf("unexpected HasContentBefore results")
	}

	ctx := a.Context(h2)
	if len(ctx) != 3 || ctx[1].Role != llm.RoleAssistant || ctx[2].Content != "second" {
		t.Fatalf("widgets should be left out of context: %+v", ctx)
	}
}

func TestArenaEditMarksDependentsStale(t *testing.T) {
	a := NewArena()
	h := a.AddHuman("I feel fine")
	r := a.AddAI(h, action.Response{Content: "glad to hear"})

	if a.Edit(h, "I feel fine") {
		t.Fatalf("unchanged edit should not need reprocessing")
	}
	if !a.Edit(h, "I feel awful") {
		t.Fatalf("edit with an answered turn should need reprocessing")
	}
	if got, _ := a.Get(r); !got.Stale {
		t.Fatalf("dependent should be stale")
	}
	ctx := a.Context(h)
	if len(ctx) != 1 || ctx[0].Content != "I feel awful" {
		t.Fatalf("stale replies must not reach the model: %+v", ctx)
	}
	if deps := a.Dependents(h); len(deps) != 1 || deps[0] != r {
		t.Fatalf("unexpected dependents %v", deps)
	}
	if a.Edit(r, "nope") {
		t.Fatalf("AI turns are not editable")
	}
}

func TestArenaInvalidate(t *testing.T) {
	a := NewArena()
	h := a.AddHuman("plan the week")
	if a.Invalidate(h) {
		t.Fatalf("nothing to invalidate yet")
	}
	a.AddAI(h, action.Response{Content: "ok"})
	if !a.Invalidate(h) {
		t.Fatalf("expected the reply to be invalidated")
	}
	if a.Invalidate(h) {
		t.Fatalf("already stale replies are not counted twice")
	}
}
