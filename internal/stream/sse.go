package stream

import (
	"bufio"
	"io"
	"strings"
)

const maxLineSize = 1 << 20

// Event is one dispatched server-sent event.
type Event struct {
	Name string
	ID   string
	Data string
}

// Decoder reads server-sent events from a text/event-stream body.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	return &Decoder{scanner: scanner}
}

// Next blocks until a complete event arrives. Comment lines such as
// ":heartbeat" are skipped. It returns io.EOF when the stream ends; a
// partial event at the end is dropped.
func (d *Decoder) Next() (Event, error) {
	var (
		event   Event
		data    []string
		hasData bool
	)

	for d.scanner.Scan() {
		line := strings.TrimSuffix(d.scanner.Text(), "\r")

		if line == "" {
			if hasData {
				event.Data = strings.Join(data, "\n")
				return event, nil
			}
			event = Event{}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			event.Name = value
		case "id":
			event.ID = value
		}
	}

	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}

	return Event{}, io.EOF
}
