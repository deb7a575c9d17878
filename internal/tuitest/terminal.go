package tuitest

import (
	"bytes"
	"io"
)

// terminalQueries are the queries bubbletea and termenv send on startup,
// paired with the answer a dark terminal would give. Without
// answers the program stalls waiting for them.
var terminalQueries = []struct {
	query, answer []byte
}{
	{[]byte("\x1b[6n"), []byte("\x1b[1;1R")},
	{[]byte("\x1b]10;?\x07"), []byte("\x1b]10;rgb:cccc/cccc/cccc\x07")},
	{[]byte("\x1b]10;?\x1b\\"), []byte("\x1b]10;rgb:cccc/cccc/cccc\x1b\\")},
	{[]byte("\x1b]11;?\x07"), []byte("\x1b]11;rgb:0000/0000/0000\x07")},
	{[]byte("\x1b]11;?\x1b\\"), []byte("\x1b]11;rgb:0000/0000/0000\x1b\\")},
}

const (
	responderLimit = 256
	responderTail  = 64
)

type terminalResponder struct {
	w   io.Writer
	buf []byte
}

func newTerminalResponder(w io.Writer) *terminalResponder {
	return &terminalResponder{w: w, buf: make([]byte, 0, 128)}
}

// Process answers any complete query in chunk. A short tail is kept so a
// query split across reads is still seen.
func (tr *terminalResponder) Process(chunk []byte) {
	tr.buf = append(tr.buf, chunk...)
	for tr.answerOne() {
	}
	if len(tr.buf) > responderLimit {
		tr.buf = tr.buf[len(tr.buf)-responderTail:]
	}
}

// answerOne replies to the earliest query in the buffer.
func (tr *terminalResponder) answerOne() bool {
	at, which := -1, -1
	for i, q := range terminalQueries {
		idx := bytes.Index(tr.buf, q.query)
		if idx >= 0 && (at < 0 || idx < at) {
			at, which = idx, i
		}
	}
	if which < 0 {
		return false
	}
	q := terminalQueries[which]
	tr.buf = tr.buf[at+len(q.query):]
	_, _ = tr.w.Write(q.answer)
	return true
}
