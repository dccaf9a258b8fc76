package models

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedRecord marks a record that could not be decoded into a JSON object.
// It is a per-record condition: callers drop the record and continue the batch.
var ErrMalformedRecord = errors.New("malformed record")

// Nested payload container used by devices that report totals under SlaveData.
const SlaveDataKey = "SlaveData"

// RawPacket is an untrusted device payload. Any field may be absent or wrong-typed.
type RawPacket map[string]any

// First returns the value of the first key that is present and non-null.
func (p RawPacket) First(keys ...string) any {
	for _, k := range keys {
		if v, ok := p[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// FirstString returns the first key whose value coerces to a non-empty string.
func (p RawPacket) FirstString(keys ...string) Optional[string] {
	for _, k := range keys {
		if s := String(p[k]); s.IsPresent() {
			return s
		}
	}
	return None[string]()
}

// Nested returns p[parent][key] when p[parent] is an object.
func (p RawPacket) Nested(parent, key string) any {
	obj, ok := p[parent].(map[string]any)
	if !ok {
		return nil
	}
	return obj[key]
}

// Clone returns a shallow copy.
func (p RawPacket) Clone() RawPacket {
	out := make(RawPacket, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ParsePacket decodes a JSON object. A JSON string that itself holds an object
// (double-encoded uplinks) is unwrapped once. Numbers are kept as json.Number.
func ParsePacket(data []byte) (RawPacket, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		data = bytes.TrimSpace([]byte(inner))
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var packet RawPacket
	if err := dec.Decode(&packet); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if packet == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedRecord)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after object", ErrMalformedRecord)
	}
	return packet, nil
}

// DecodeRecord decodes a transport record that is either raw UTF-8 JSON or
// base64-encoded UTF-8 JSON.
func DecodeRecord(data []byte) (RawPacket, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty record", ErrMalformedRecord)
	}
	if trimmed[0] == '{' || trimmed[0] == '"' {
		return ParsePacket(trimmed)
	}

	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(trimmed)))
	n, err := base64.StdEncoding.Decode(decoded, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: neither JSON nor base64: %v", ErrMalformedRecord, err)
	}
	return ParsePacket(decoded[:n])
}
