// Package channel carries an object.List across a process boundary. Both
// ends of every stage boundary use the same encoding: a JSON array of
// records, whitespace-insensitive, with numbers preserved verbatim and blob
// content passed by reference. A decode failure is fatal to the reading
// stage; the channel never silently drops records.
package channel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"m365/internal/object"
)

// DecodeError reports malformed inter-stage data: a truncated stream, a
// top-level value that is not an array, or an element outside the record
// value space.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("channel decode: %s: %v", e.Reason, e.Err)
	}
	return "channel decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode writes the List to w. A nil List encodes as the empty array so the
// consumer always sees a well-formed document.
func Encode(w io.Writer, list object.List) error {
	if list == nil {
		list = object.List{}
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(list); err != nil {
		return fmt.Errorf("channel encode: %w", err)
	}
	return nil
}

// Decode reads a List from r. The stream must contain exactly one JSON
// array of objects; anything else yields a *DecodeError. Numbers are
// decoded as json.Number so a round trip through the channel is lossless.
func Decode(r io.Reader) (object.List, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &DecodeError{Reason: "empty stream", Err: err}
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &DecodeError{Reason: "truncated stream", Err: err}
		}
		return nil, &DecodeError{Reason: "not a record list", Err: err}
	}

	list := make(object.List, 0, len(raw))
	for i, elem := range raw {
		m, ok := elem.(map[string]any)
		if !ok {
			return nil, &DecodeError{Reason: fmt.Sprintf("element %d is %T, not an object", i, elem)}
		}
		rec, err := object.NormalizeRecord(m)
		if err != nil {
			return nil, &DecodeError{Reason: fmt.Sprintf("element %d", i), Err: err}
		}
		list = append(list, rec)
	}

	// Trailing garbage after the array means the producer and consumer
	// disagree about framing; treat it as corruption.
	if dec.More() {
		return nil, &DecodeError{Reason: "trailing data after record list"}
	}

	return list, nil
}

// DecodeBytes decodes a List from an in-memory buffer. Empty or
// whitespace-only input is the zero-records case, not an error; a process
// that emits nothing on stdout has produced an empty List.
func DecodeBytes(data []byte) (object.List, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return object.List{}, nil
	}
	return Decode(bytes.NewReader(data))
}
