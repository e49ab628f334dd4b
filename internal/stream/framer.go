// Package stream implements the client side of the assistant SSE
// protocol: line framing, delta extraction and incremental message
// assembly.
package stream

import "strings"

type framerState int

const (
	// stateAwaitingLine means the buffer may hold complete lines ready to
	// be popped.
	stateAwaitingLine framerState = iota
	// stateHavePartialLine means the front of the buffer is a put-back
	// line that needs more bytes before it can be re-framed.
	stateHavePartialLine
)

// lineFramer splits an incrementally arriving byte stream into lines.
// A consumer that fails to parse a popped line can push it back: the
// framer withholds it until the next chunk arrives and then re-delivers
// it intact, ahead of the lines that follow. A line split across
// network chunks is simply held until its newline shows up.
type lineFramer struct {
	buf   string
	state framerState
}

// Push appends a raw chunk to the buffer and re-arms line delivery.
func (f *lineFramer) Push(chunk string) {
	f.buf += chunk
	f.state = stateAwaitingLine
}

// Next pops the next complete line, with any trailing carriage return
// stripped. ok is false when no complete line is buffered or a put-back
// line is still waiting for more bytes.
func (f *lineFramer) Next() (line string, ok bool) {
	if f.state == stateHavePartialLine {
		return "", false
	}
	i := strings.IndexByte(f.buf, '\n')
	if i < 0 {
		return "", false
	}
	line = strings.TrimSuffix(f.buf[:i], "\r")
	f.buf = f.buf[i+1:]
	return line, true
}

// PushBack returns an unconsumed line to the front of the buffer, with
// its framing newline restored so it cannot merge into the line behind
// it, and withholds it until more bytes arrive.
func (f *lineFramer) PushBack(line string) {
	f.buf = line + "\n" + f.buf
	f.state = stateHavePartialLine
}
