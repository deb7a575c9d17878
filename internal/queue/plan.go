package queue

import (
	"context"
	"fmt"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
	"github.com/jacobB1290/JwebAPP-sub000/internal/store"
)

// Intent is one persistence step derived from an action. Plan produces them
// without touching the store; Apply executes them in order.
type Intent interface {
	intent()
}

// EnsureFolderIntent files the target entry under a named folder.
type EnsureFolderIntent struct {
	Name string
}

// CreateEntryIntent makes a new entry the target.
type CreateEntryIntent struct {
	Entry store.NewEntry
}

// UseEntryIntent makes an existing entry the target.
type UseEntryIntent struct {
	EntryID string
}

// AppendMessagesIntent stores messages on the target entry.
type AppendMessagesIntent struct {
	Messages []store.NewMessage
}

// UpdateEntryIntent changes the title or tags of the target entry.
type UpdateEntryIntent struct {
	Update store.EntryUpdate
}

// SetMemoIntent replaces the context memo.
type SetMemoIntent struct {
	Summary string
}

func (EnsureFolderIntent) intent()   {}
func (CreateEntryIntent) intent()    {}
func (UseEntryIntent) intent()       {}
func (AppendMessagesIntent) intent() {}
func (UpdateEntryIntent) intent()    {}
func (SetMemoIntent) intent()        {}

// PlanInput is the session snapshot Plan works from.
type PlanInput struct {
	Job        Job
	Action     action.Action
	EntryID    string
	EntryTitle string
	// Memo is the context memo read before dispatch. New entries keep it as
	// their snapshot.
	Memo string
}

// Plan turns a completed dispatch into persistence intents. When EntryID is
// set the plan always targets it, whatever the action asked for.
func Plan(in PlanInput) []Intent {
	act := in.Action
	act.EnforceEntry(in.EntryID)

	var intents []Intent
	if act.FolderSuggestion != "" {
		intents = append(intents, EnsureFolderIntent{Name: act.FolderSuggestion})
	}

	target := in.EntryID
	if target == "" && act.Database.Kind == action.AppendToEntry && act.Database.EntryID != "" {
		target = act.Database.EntryID
	}
	newEntry := target == ""
	if newEntry {
		intents = append(intents, CreateEntryIntent{Entry: store.NewEntry{
			Title:        act.EntryTitleSuggestion,
			EmotionTags:  act.EmotionTags,
			TopicTags:    act.TopicTags,
			MemoSnapshot: in.Memo,
			Status:       store.StatusLive,
			Source:       store.SourceJournal,
		}})
	} else {
		intents = append(intents, UseEntryIntent{EntryID: target})
	}

	linked := ""
	if act.Database.Kind == action.LinkToExisting {
		linked = act.Database.EntryID
	}
	msgs := []store.NewMessage{{Sender: store.SenderHuman, Content: in.Job.Text, Type: store.TypeText}}
	for _, resp := range act.Responses {
		msgType := store.TypeConversational
		if resp.Kind == action.KindAnnotation {
			msgType = store.TypeAnnotation
		}
		link := resp.LinkedEntryID
		if link == "" {
			link = linked
		}
		msgs = append(msgs, store.NewMessage{
			Sender:        store.SenderAssistant,
			Content:       resp.Content,
			Type:          msgType,
			Tone:          resp.Tone,
			LinkedEntryID: link,
		})
	}
	if act.ToolCall != nil {
		msgs = append(msgs, store.NewMessage{
			Sender:   store.SenderAssistant,
			Content:  act.ToolCall.Title,
			Type:     store.TypeTool,
			ToolCall: act.ToolCall,
		})
	}
	intents = append(intents, AppendMessagesIntent{Messages: msgs})

	if !newEntry {
		upd := store.EntryUpdate{EmotionTags: act.EmotionTags, TopicTags: act.TopicTags}
		if in.EntryTitle == "" && act.EntryTitleSuggestion != "" && target == in.EntryID {
			title := act.EntryTitleSuggestion
			upd.Title = &title
		}
		if upd.Title != nil || len(upd.EmotionTags) > 0 || len(upd.TopicTags) > 0 {
			intents = append(intents, UpdateEntryIntent{Update: upd})
		}
	}

	if act.ContextMemoUpdate != "" {
		intents = append(intents, SetMemoIntent{Summary: act.ContextMemoUpdate})
	}
	return intents
}

// Applied reports what Apply managed to do before it stopped.
type Applied struct {
	EntryID    string
	EntryTitle string
	Created    bool
	Messages   []store.Message
}

// Apply executes intents against st in order and stops at the first failure.
// The returned Applied is valid even when err is not nil.
func Apply(ctx context.Context, st Store, intents []Intent) (Applied, error) {
	var (
		out      Applied
		folderID string
	)
	for _, in := range intents {
		switch it := in.(type) {
		case EnsureFolderIntent:
			folder, err := st.EnsureFolder(ctx, it.Name)
			if err != nil {
				return out, fmt.Errorf("ensure folder %q: %w", it.Name, err)
			}
			folderID = folder.ID
		case CreateEntryIntent:
			entry := it.Entry
			entry.FolderID = folderID
			created, err := st.CreateEntry(ctx, entry)
			if err != nil {
				return out, fmt.Errorf("create entry: %w", err)
			}
			out.EntryID, out.EntryTitle, out.Created = created.ID, created.Title, true
		case UseEntryIntent:
			out.EntryID = it.EntryID
			if folderID != "" {
				id := folderID
				if _, err := st.UpdateEntry(ctx, it.EntryID, store.EntryUpdate{FolderID: &id}); err != nil {
					return out, fmt.Errorf("file entry: %w", err)
				}
			}
		case AppendMessagesIntent:
			if out.EntryID == "" {
				return out, fmt.Errorf("append messages: no target entry")
			}
			msgs, err := st.AppendMessages(ctx, out.EntryID, it.Messages)
			if err != nil {
				return out, fmt.Errorf("append messages: %w", err)
			}
			out.Messages = msgs
		case UpdateEntryIntent:
			updated, err := st.UpdateEntry(ctx, out.EntryID, it.Update)
			if err != nil {
				return out, fmt.Errorf("update entry: %w", err)
			}
			out.EntryTitle = updated.Title
		case SetMemoIntent:
			if err := st.SetContextMemo(ctx, it.Summary); err != nil {
				return out, fmt.Errorf("set memo: %w", err)
			}
		}
	}
	return out, nil
}
