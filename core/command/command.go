// Package command decodes inbound command batches and routes each entry to
// the actuation controller.
//
// A batch is a JSON object whose keys name commands and whose values are
// their single argument, e.g. {"water": 3}. Keys map onto a closed set of
// variants; a key outside that set becomes Unknown and is reported rather
// than failing the batch.
package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Command keys accepted on the wire.
const (
	KeyWater = "water"
	KeyStop  = "stop"
)

// ErrMalformedBatch is returned when a payload is not a JSON object.
var ErrMalformedBatch = errors.New("malformed command batch")

// Command is one decoded batch entry. The set of implementations is closed.
type Command interface {
	Key() string
	command()
}

// Water opens the valve for Seconds. Seconds is NaN when the wire argument
// was not a number.
type Water struct {
	Seconds float64
}

// Stop closes the valve immediately.
type Stop struct{}

// Unknown is any key this agent does not understand.
type Unknown struct {
	Name string
}

func (Water) Key() string     { return KeyWater }
func (Stop) Key() string      { return KeyStop }
func (u Unknown) Key() string { return u.Name }

func (Water) command()   {}
func (Stop) command()    {}
func (Unknown) command() {}

// Entry is one key of a batch with its decoded command.
type Entry struct {
	Name    string
	Raw     json.RawMessage
	Command Command
}

// Batch is a decoded command payload, ordered by key.
type Batch []Entry

// Decode parses a command payload. Only a payload that is not a JSON object
// fails; unusable entries are decoded as Unknown or as Water with a NaN
// duration so they can be reported individually.
func Decode(payload []byte) (Batch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: null payload", ErrMalformedBatch)
	}
	names := make([]string, 0, len(raw))
	for k := range raw {
		names = append(names, k)
	}
	sort.Strings(names)

	batch := make(Batch, 0, len(names))
	for _, name := range names {
		batch = append(batch, Entry{Name: name, Raw: raw[name], Command: parse(name, raw[name])})
	}
	return batch, nil
}

func parse(name string, raw json.RawMessage) Command {
	switch name {
	case KeyWater:
		return Water{Seconds: parseSeconds(raw)}
	case KeyStop:
		return Stop{}
	default:
		return Unknown{Name: name}
	}
}

// parseSeconds accepts a JSON number or a numeric string.
func parseSeconds(raw json.RawMessage) float64 {
	if string(bytes.TrimSpace(raw)) == "null" {
		return math.NaN()
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v
		}
	}
	return math.NaN()
}

// Encode builds a batch payload from commands, as sent by the plant agent
// when it asks the barrel for water.
func Encode(cmds ...Command) ([]byte, error) {
	out := make(map[string]any, len(cmds))
	for _, c := range cmds {
		switch v := c.(type) {
		case Water:
			if math.IsNaN(v.Seconds) || math.IsInf(v.Seconds, 0) {
				return nil, fmt.Errorf("encode water: invalid duration %v", v.Seconds)
			}
			out[KeyWater] = v.Seconds
		case Stop:
			out[KeyStop] = true
		default:
			return nil, fmt.Errorf("encode: unsupported command %q", c.Key())
		}
	}
	return json.Marshal(out)
}
