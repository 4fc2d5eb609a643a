package events

import (
	"bytes"
	"errors"
)

var (
	framePrefix     = []byte("data: ")
	frameTerminator = []byte("\n\n")
)

// Frame encodes an event as a text/event-stream message: "data: <json>\n\n".
func Frame(evt Event) []byte {
	body := evt.body
	buf := make([]byte, 0, len(framePrefix)+len(body)+len(frameTerminator))
	buf = append(buf, framePrefix...)
	buf = append(buf, body...)
	return append(buf, frameTerminator...)
}

// Heartbeat is an SSE comment frame ignored by clients.
func Heartbeat() []byte {
	return []byte(": ping\n\n")
}

// ParseFrame extracts the JSON payload from a single "data:" frame.
func ParseFrame(frame []byte) ([]byte, error) {
	frame = bytes.TrimSuffix(frame, frameTerminator)
	if !bytes.HasPrefix(frame, []byte("data:")) {
		return nil, errors.New("frame missing data prefix")
	}
	return bytes.TrimSpace(frame[len("data:"):]), nil
}
