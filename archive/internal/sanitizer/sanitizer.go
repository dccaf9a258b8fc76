// Package sanitizer prepares telemetry records for line-delimited bulk
// storage: numeric fields are coerced, records without power draw dropped.
package sanitizer

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"github.com/telhawk-systems/powerhawk/common/models"
)

// Per-record outcomes.
const (
	ResultOk      = "Ok"
	ResultDropped = "Dropped"
)

// Record is one delivery record. Data is base64-encoded UTF-8 JSON.
type Record struct {
	RecordID string `json:"recordId"`
	Data     string `json:"data"`
}

// Result is the outcome of one record. Data is set only for ResultOk and
// holds the base64 of the sanitized JSON followed by "\n".
type Result struct {
	RecordID string `json:"recordId"`
	Result   string `json:"result"`
	Data     string `json:"data,omitempty"`
}

// Sanitizer applies the coercion and drop policy.
type Sanitizer struct {
	numeric  []string
	required []string
}

// New creates a Sanitizer. numeric lists the fields coerced to float;
// a record is kept only if at least one of required is numeric afterwards.
func New(numeric, required []string) *Sanitizer {
	return &Sanitizer{numeric: numeric, required: required}
}

// Transform sanitizes a batch. The output has one Result per input record,
// in input order.
func (s *Sanitizer) Transform(records []Record) []Result {
	out := make([]Result, len(records))
	for i, rec := range records {
		out[i] = Result{RecordID: rec.RecordID, Result: ResultDropped}

		raw, err := base64.StdEncoding.DecodeString(rec.Data)
		if err != nil {
			continue
		}
		payload, ok := s.Sanitize(raw)
		if !ok {
			continue
		}
		out[i].Result = ResultOk
		out[i].Data = base64.StdEncoding.EncodeToString(payload)
	}
	return out
}

// Sanitize decodes one raw or base64 JSON object, coerces the numeric fields and
// re-serializes it with a trailing newline. ok is false when the record
// must be dropped.
func (s *Sanitizer) Sanitize(raw []byte) ([]byte, bool) {
	obj, err := models.DecodeRecord(raw)
	if err != nil {
		return nil, false
	}

	for _, key := range s.numeric {
		v, present := obj[key]
		if !present {
			continue
		}
		if f, ok := models.Float(v).Get(); ok {
			obj[key] = f
		} else {
			obj[key] = nil
		}
	}

	if !s.hasRequired(obj) {
		return nil, false
	}

	// Encode terminates the document with the "\n" record separator.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func (s *Sanitizer) hasRequired(obj models.RawPacket) bool {
	for _, key := range s.required {
		if obj[key] != nil {
			return true
		}
	}
	return false
}
