package tuitest

import "time"

// Key sequences for the journal's bindings.
var (
	KeyEnter = []byte{'\r'}
	KeyEsc   = []byte{27}
	KeyCtrlC = []byte{3}
	KeyCtrlE = []byte{5}
	KeyCtrlL = []byte{12}
	KeyCtrlN = []byte{14}
	KeyCtrlO = []byte{15}
	KeyCtrlS = []byte{19}
)

// Press sends a key after delay.
func Press(delay time.Duration, key []byte) Step {
	return Step{Delay: delay, Input: key}
}

// Type writes text one rune at a time with gap between keystrokes, the way a
// person types into the composer. The first rune waits for delay.
func Type(delay, gap time.Duration, text string) []Step {
	steps := make([]Step, 0, len(text))
	for i, r := range text {
		wait := gap
		if i == 0 {
			wait = delay
		}
		steps = append(steps, Step{Delay: wait, Input: []byte(string(r))})
	}
	return steps
}

// Script flattens step groups into one sequence.
func Script(groups ...[]Step) []Step {
	var out []Step
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
