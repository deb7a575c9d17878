package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
)

// ToolSpec is a provider-neutral tool definition. Schema is a JSON Schema
// object with "properties" and optional "required".
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

func objectSchema(required []string, props map[string]any) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func list(desc string, items map[string]any) map[string]any {
	return map[string]any{"type": "array", "description": desc, "items": items}
}

var toolSpecs = []ToolSpec{
	{
		Name:        string(action.ToolLoadEntry),
		Description: "Open a previous journal entry next to the current one.",
		Schema: objectSchema([]string{"entry_id"}, map[string]any{
			"entry_id": str("ID of the entry to open"),
			"title":    str("Short label for the card"),
		}),
	},
	{
		Name:        string(action.ToolChart),
		Description: "Show a small chart built from numbers the writer mentioned.",
		Schema: objectSchema([]string{"labels", "values"}, map[string]any{
			"title":      str("Chart title"),
			"chart_type": str("bar, line, or pie"),
			"labels":     list("X axis labels", map[string]any{"type": "string"}),
			"values":     list("One value per label", map[string]any{"type": "number"}),
		}),
	},
	{
		Name:        string(action.ToolChecklist),
		Description: "Turn tasks in the writing into a checklist.",
		Schema: objectSchema([]string{"items"}, map[string]any{
			"title": str("Checklist title"),
			"items": list("Checklist items", map[string]any{"type": "string"}),
		}),
	},
	{
		Name:        string(action.ToolPromptCard),
		Description: "Offer a reflective writing prompt.",
		Schema: objectSchema([]string{"prompt"}, map[string]any{
			"title":  str("Card title"),
			"prompt": str("The question to reflect on"),
		}),
	},
	{
		Name:        string(action.ToolTable),
		Description: "Organise structured details into a table.",
		Schema: objectSchema([]string{"columns", "rows"}, map[string]any{
			"title":   str("Table title"),
			"columns": list("Column headers", map[string]any{"type": "string"}),
			"rows":    list("Rows of cell values", map[string]any{"type": "array", "items": map[string]any{"type": "string"}}),
		}),
	},
	{
		Name:        string(action.ToolTracker),
		Description: "Track a recurring metric such as sleep, mood, or exercise.",
		Schema: objectSchema([]string{"metric"}, map[string]any{
			"title":  str("Tracker title"),
			"metric": str("What is being tracked"),
			"value":  map[string]any{"type": "number", "description": "Today's value"},
			"unit":   str("Unit of the value"),
		}),
	},
	{
		Name:        string(action.ToolLinkCard),
		Description: "Show a link the writer referenced.",
		Schema: objectSchema([]string{"url"}, map[string]any{
			"title":       str("Link title"),
			"url":         str("Absolute URL"),
			"description": str("One line summary"),
		}),
	},
	{
		Name:        string(action.ToolCalendarView),
		Description: "Lay out dated events the writer mentioned.",
		Schema: objectSchema([]string{"events"}, map[string]any{
			"title": str("Calendar title"),
			"events": list("Events", objectSchema([]string{"date", "label"}, map[string]any{
				"date":  str("ISO date"),
				"label": str("What happens"),
			})),
		}),
	},
}

// ToolSpecs returns the tool catalog offered when tools are enabled.
func ToolSpecs() []ToolSpec {
	out := make([]ToolSpec, len(toolSpecs))
	copy(out, toolSpecs)
	return out
}

type toolNormalizer struct {
	defaultTitle string
	fields       func(in map[string]any) (map[string]any, bool)
}

var toolNormalizers = map[action.ToolKind]toolNormalizer{
	action.ToolLoadEntry: {
		defaultTitle: "Previous entry",
		fields: func(in map[string]any) (map[string]any, bool) {
			id := pickString(in, "entry_id", "entryId", "id")
			return map[string]any{"entryId": id}, id != ""
		},
	},
	action.ToolChart: {
		defaultTitle: "Chart",
		fields: func(in map[string]any) (map[string]any, bool) {
			chartType := pickString(in, "chart_type", "chartType", "type")
			if chartType == "" {
				chartType = "bar"
			}
			labels := pickStrings(in, "labels")
			values := pickNumbers(in, "values", "data")
			return map[string]any{"chartType": chartType, "labels": labels, "values": values}, len(values) > 0
		},
	},
	action.ToolChecklist: {
		defaultTitle: "Checklist",
		fields: func(in map[string]any) (map[string]any, bool) {
			items := pickStrings(in, "items", "tasks")
			return map[string]any{"items": items}, len(items) > 0
		},
	},
	action.ToolPromptCard: {
		defaultTitle: "Something to reflect on",
		fields: func(in map[string]any) (map[string]any, bool) {
			prompt := pickString(in, "prompt", "question", "text")
			return map[string]any{"prompt": prompt}, prompt != ""
		},
	},
	action.ToolTable: {
		defaultTitle: "Table",
		fields: func(in map[string]any) (map[string]any, bool) {
			columns := pickStrings(in, "columns", "headers")
			rows := pickRows(in, "rows")
			return map[string]any{"columns": columns, "rows": rows}, len(columns) > 0
		},
	},
	action.ToolTracker: {
		defaultTitle: "Tracker",
		fields: func(in map[string]any) (map[string]any, bool) {
			metric := pickString(in, "metric", "name")
			data := map[string]any{"metric": metric, "unit": pickString(in, "unit")}
			if v, ok := in["value"].(float64); ok {
				data["value"] = v
			}
			return data, metric != ""
		},
	},
	action.ToolLinkCard: {
		fields: func(in map[string]any) (map[string]any, bool) {
			url := pickString(in, "url", "href", "link")
			return map[string]any{"url": url, "description": pickString(in, "description", "summary")}, url != ""
		},
	},
	action.ToolCalendarView: {
		defaultTitle: "Calendar",
		fields: func(in map[string]any) (map[string]any, bool) {
			raw, _ := in["events"].([]any)
			events := make([]map[string]string, 0, len(raw))
			for _, item := range raw {
				obj, ok := item.(map[string]any)
				if !ok {
					continue
				}
				date, label := pickString(obj, "date"), pickString(obj, "label", "title")
				if date == "" && label == "" {
					continue
				}
				events = append(events, map[string]string{"date": date, "label": label})
			}
			return map[string]any{"events": events}, len(events) > 0
		},
	},
}

// normalizeToolCall maps one raw provider tool invocation onto the canonical
// shape. Unknown names and inputs missing their essential field are ignored.
func normalizeToolCall(name string, input json.RawMessage) (*action.ToolCall, bool) {
	kind := action.ToolKind(strings.TrimSpace(name))
	norm, ok := toolNormalizers[kind]
	if !ok {
		return nil, false
	}
	in := map[string]any{}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, false
		}
	}
	data, ok := norm.fields(in)
	if !ok {
		return nil, false
	}
	title := pickString(in, "title")
	if title == "" {
		title = norm.defaultTitle
	}
	if title == "" && kind == action.ToolLinkCard {
		title, _ = data["url"].(string)
	}
	return &action.ToolCall{Kind: kind, Title: title, Data: data}, true
}

func pickString(in map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := in[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%g", v)
		}
	}
	return ""
}

func pickStrings(in map[string]any, keys ...string) []string {
	for _, key := range keys {
		raw, ok := in[key].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			switch v := item.(type) {
			case string:
				if s := strings.TrimSpace(v); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				if s := pickString(v, "text", "label", "title"); s != "" {
					out = append(out, s)
				}
			case float64:
				out = append(out, fmt.Sprintf("%g", v))
			}
		}
		return out
	}
	return []string{}
}

func pickNumbers(in map[string]any, keys ...string) []float64 {
	for _, key := range keys {
		raw, ok := in[key].([]any)
		if !ok {
			continue
		}
		out := make([]float64, 0, len(raw))
		for _, item := range raw {
			if v, ok := item.(float64); ok {
				out = append(out, v)
			}
		}
		return out
	}
	return []float64{}
}

func pickRows(in map[string]any, key string) [][]string {
	raw, _ := in[key].([]any)
	rows := make([][]string, 0, len(raw))
	for _, item := range raw {
		cells, ok := item.([]any)
		if !ok {
			continue
		}
		row := make([]string, 0, len(cells))
		for _, cell := range cells {
			switch v := cell.(type) {
			case string:
				row = append(row, v)
			case float64:
				row = append(row, fmt.Sprintf("%g", v))
			default:
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}
	return rows
}
