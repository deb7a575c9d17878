package tuitest

import (
	"regexp"
	"strings"
)

// Frame is one screen repaint with escape sequences removed from Plain.
type Frame struct {
	Index int
	ANSI  string
	Plain string
}

var (
	clearScreen = regexp.MustCompile(`\x1b\[[0-9;]*J`)
	csiPattern  = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
	oscPattern  = regexp.MustCompile(`\x1b\][^\x07]*(\x07|\x1b\\)`)
)

// parseFrames splits the raw stream at screen clears. bubbletea repaints in
// place, so a frame boundary is any erase-display sequence.
func parseFrames(raw []byte) []Frame {
	cleaned := strings.ReplaceAll(string(raw), "\r", "")
	var frames []Frame
	for _, segment := range clearScreen.Split(cleaned, -1) {
		segment = strings.TrimPrefix(strings.Trim(segment, "\x00"), "\x1b[H")
		plain := stripANSI(segment)
		if strings.TrimSpace(plain) == "" {
			continue
		}
		frames = append(frames, Frame{Index: len(frames), ANSI: segment, Plain: normalizeLines(plain)})
	}
	if len(frames) == 0 && len(cleaned) > 0 {
		frames = append(frames, Frame{ANSI: cleaned, Plain: normalizeLines(stripANSI(cleaned))})
	}
	return frames
}

// FinalFrame returns the last captured frame. The second return value is false
// when no frames were recorded.
func (r *Recording) FinalFrame() (Frame, bool) {
	if r == nil || len(r.Frames) == 0 {
		return Frame{}, false
	}
	return r.Frames[len(r.Frames)-1], true
}

// FirstFrameWith returns the earliest frame whose plain text contains text.
func (r *Recording) FirstFrameWith(text string) (Frame, bool) {
	if r == nil {
		return Frame{}, false
	}
	for _, f := range r.Frames {
		if strings.Contains(f.Plain, text) {
			return f, true
		}
	}
	return Frame{}, false
}

// Transcript joins every frame's plain text, useful when an assertion does not
// care which repaint showed something.
func (r *Recording) Transcript() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Frames))
	for _, f := range r.Frames {
		parts = append(parts, f.Plain)
	}
	return strings.Join(parts, "\n")
}

func stripANSI(s string) string {
	s = oscPattern.ReplaceAllString(s, "")
	s = csiPattern.ReplaceAllString(s, "")
	return strings.NewReplacer("\x0f", "", "\x0e", "").Replace(s)
}

func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
