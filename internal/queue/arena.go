package queue

import (
	"sync"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
	"github.com/jacobB1290/JwebAPP-sub000/internal/llm"
)

// TurnID addresses a turn in an Arena. Zero is never a valid id.
type TurnID int

// TurnRole is who wrote a turn.
type TurnRole int

const (
	HumanTurn TurnRole = iota
	AITurn
)

// Turn is one item of the session stream. AI turns point back at the human
// turn that produced them through SourceID.
type Turn struct {
	ID       TurnID
	Role     TurnRole
	Content  string
	SourceID TurnID

	Kind     action.Kind
	Tone     action.Tone
	ToolCall *action.ToolCall

	Processing bool
	Failed     bool
	Stale      bool
}

// Arena owns every turn of a session and hands out stable ids, so turns can
// reference each other without pointers.
type Arena struct {
	mu    sync.RWMutex
	turns []Turn
	index map[TurnID]int
	next  TurnID
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{index: map[TurnID]int{}}
}

func (a *Arena) add(t Turn) TurnID {
	a.next++
	t.ID = a.next
	a.index[t.ID] = len(a.turns)
	a.turns = append(a.turns, t)
	return t.ID
}

// addAfter places an AI turn right after its source and any earlier
// dependents, so replies stay next to the text that produced them even when
// later human turns were queued in the meantime.
func (a *Arena) addAfter(t Turn) TurnID {
	i, ok := a.index[t.SourceID]
	if !ok {
		return a.add(t)
	}
	at := i + 1
	for at < len(a.turns) && a.turns[at].Role == AITurn && a.turns[at].SourceID == t.SourceID {
		at++
	}
	a.next++
	t.ID = a.next
	a.turns = append(a.turns, Turn{})
	copy(a.turns[at+1:], a.turns[at:])
	a.turns[at] = t
	for j := at; j < len(a.turns); j++ {
		a.index[a.turns[j].ID] = j
	}
	return t.ID
}

// AddHuman appends a human turn that is waiting to be processed.
func (a *Arena) AddHuman(content string) TurnID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.add(Turn{Role: HumanTurn, Content: content, Processing: true})
}

// AddAI appends an assistant turn derived from source.
func (a *Arena) AddAI(source TurnID, resp action.Response) TurnID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addAfter(Turn{Role: AITurn, Content: resp.Content, SourceID: source, Kind: resp.Kind, Tone: resp.Tone})
}

// AddTool appends an assistant widget derived from source.
func (a *Arena) AddTool(source TurnID, call *action.ToolCall) TurnID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addAfter(Turn{Role: AITurn, Content: call.Title, SourceID: source, ToolCall: call})
}

// Get returns a copy of the turn with id.
func (a *Arena) Get(id TurnID) (Turn, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i, ok := a.index[id]
	if !ok {
		return Turn{}, false
	}
	return a.turns[i], true
}

// Turns returns a snapshot of the stream in order.
func (a *Arena) Turns() []Turn {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Turn(nil), a.turns...)
}

// Len is the number of turns.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.turns)
}

// HasContentBefore reports whether anything precedes id in the stream.
func (a *Arena) HasContentBefore(id TurnID) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i, ok := a.index[id]
	if !ok {
		return len(a.turns) > 0
	}
	return i > 0
}

// SetProcessing flags whether a human turn is waiting on the model.
func (a *Arena) SetProcessing(id TurnID, processing bool) {
	a.update(id, func(t *Turn) { t.Processing = processing })
}

// MarkFailed records that processing id failed.
func (a *Arena) MarkFailed(id TurnID) {
	a.update(id, func(t *Turn) {
		t.Processing = false
		t.Failed = true
	})
}

func (a *Arena) update(id TurnID, fn func(*Turn)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i, ok := a.index[id]; ok {
		fn(&a.turns[i])
	}
}

// Dependents lists the AI turns whose SourceID is id.
func (a *Arena) Dependents(id TurnID) []TurnID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []TurnID
	for _, t := range a.turns {
		if t.Role == AITurn && t.SourceID == id {
			out = append(out, t.ID)
		}
	}
	return out
}

// Edit replaces a human turn's content and marks its dependents stale. It
// reports whether the turn needs reprocessing, which is the case when the
// content changed and the model had already answered it.
func (a *Arena) Edit(id TurnID, content string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	i, ok := a.index[id]
	if !ok || a.turns[i].Role != HumanTurn || a.turns[i].Content == content {
		return false
	}
	a.turns[i].Content = content
	a.turns[i].Failed = false
	return a.invalidateLocked(id)
}

// Invalidate marks every AI turn derived from id as stale and reports
// whether there were any.
func (a *Arena) Invalidate(id TurnID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.invalidateLocked(id)
}

func (a *Arena) invalidateLocked(id TurnID) bool {
	stale := false
	for j := range a.turns {
		if a.turns[j].Role == AITurn && a.turns[j].SourceID == id && !a.turns[j].Stale {
			a.turns[j].Stale = true
			stale = true
		}
	}
	return stale
}

// Context converts the stream up to and including upto into provider turns.
// Stale turns and widgets are left out.
func (a *Arena) Context(upto TurnID) []llm.Turn {
	a.mu.RLock()
	defer a.mu.RUnlock()
	end := len(a.turns)
	if i, ok := a.index[upto]; ok {
		end = i + 1
	}
	out := make([]llm.Turn, 0, end)
	for _, t := range a.turns[:end] {
		if t.Stale || t.ToolCall != nil {
			continue
		}
		role := llm.RoleUser
		if t.Role == AITurn {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Turn{Role: role, Content: t.Content})
	}
	return out
}
