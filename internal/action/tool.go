package action

// ToolKind enumerates the interactive widgets the companion can attach to a reply.
type ToolKind string

const (
	ToolLoadEntry    ToolKind = "load_entry"
	ToolChart        ToolKind = "chart"
	ToolChecklist    ToolKind = "checklist"
	ToolPromptCard   ToolKind = "prompt_card"
	ToolTable        ToolKind = "table"
	ToolTracker      ToolKind = "tracker"
	ToolLinkCard     ToolKind = "link_card"
	ToolCalendarView ToolKind = "calendar_view"
)

// ToolKinds lists every supported kind in catalog order.
var ToolKinds = []ToolKind{
	ToolLoadEntry,
	ToolChart,
	ToolChecklist,
	ToolPromptCard,
	ToolTable,
	ToolTracker,
	ToolLinkCard,
	ToolCalendarView,
}

// Valid reports whether k is one of the supported kinds.
func (k ToolKind) Valid() bool {
	for _, known := range ToolKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ToolCall is a normalized tool invocation, independent of provider envelope.
type ToolCall struct {
	Kind  ToolKind       `json:"kind"`
	Title string         `json:"title"`
	Data  map[string]any `json:"data"`
}
