package llm

import "strings"

// ContinuingPlaceholder is the synthetic human turn inserted when a
// conversation would otherwise open with the assistant.
const ContinuingPlaceholder = "(continuing)"

// NormalizeTurns makes a turn list acceptable to every provider: empty turns
// are dropped, consecutive turns of the same role are joined with a blank
// line, and the list always opens with a human turn.
func NormalizeTurns(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns)+1)
	for _, turn := range turns {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		role := turn.Role
		if role != RoleAssistant {
			role = RoleUser
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + content
			continue
		}
		out = append(out, Turn{Role: role, Content: content})
	}
	if len(out) > 0 && out[0].Role != RoleUser {
		out = append([]Turn{{Role: RoleUser, Content: ContinuingPlaceholder}}, out...)
	}
	return out
}
