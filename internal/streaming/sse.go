package streaming

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Frame renders ev as a single text/event-stream frame: an `event:`
// line naming the type and a `data:` line carrying the JSON-encoded
// payload, terminated by a blank line per the SSE wire format.
func Frame(ev Event) ([]byte, error) {
	data := ev.Data
	if data == nil {
		data = struct{}{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("streaming: marshal %s payload: %w", ev.Type, err)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "event: %s\n", ev.Type)
	fmt.Fprintf(&buf, "data: %s\n\n", payload)
	return buf.Bytes(), nil
}
