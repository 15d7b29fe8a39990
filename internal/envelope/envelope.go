// Package envelope turns the raw body served by /api/get-latest-webhook into
// a typed value: either a recognized conversation or a rejection.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrEmpty     = errors.New("empty webhook body")
	ErrMalformed = errors.New("malformed webhook body")
)

// recognizedSchema is the only structural gate: a payload is recognized when
// body.data.analysis.data_collection_results is present and not null. Its
// shape is not checked; a non-object yields a record with every field empty.
const recognizedSchema = `{
  "type": "object",
  "required": ["body"],
  "properties": {
    "body": {
      "type": "object",
      "required": ["data"],
      "properties": {
        "data": {
          "type": "object",
          "required": ["analysis"],
          "properties": {
            "analysis": {
              "type": "object",
              "required": ["data_collection_results"],
              "properties": {
                "data_collection_results": {"not": {"type": "null"}}
              }
            }
          }
        }
      }
    }
  }
}`

var recognizer = mustSchema(recognizedSchema)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("envelope: compile schema: %v", err))
	}
	return schema
}

// Envelope is one polled delivery.
type Envelope struct {
	// Timestamp is used only for change detection.
	Timestamp Stamp
	// Data is body.data verbatim, nil when absent.
	Data json.RawMessage
	// Conversation is nil when the payload was not recognized.
	Conversation *Conversation
	// Rejection lists why the payload was not recognized.
	Rejection []string
}

func (e *Envelope) Recognized() bool { return e != nil && e.Conversation != nil }

// Conversation is the typed view of a recognized body.data.
type Conversation struct {
	ID                *string
	Results           map[string]json.RawMessage
	TranscriptSummary *string
	// Transcript is body.data.transcript verbatim, nil when absent or null.
	Transcript       json.RawMessage
	CallDurationSecs *float64
}

// Parse decodes a polled body. Only the recognition path is validated;
// optional fields that fail to decode are left absent.
func Parse(body []byte) (*Envelope, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, ErrEmpty
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	env := &Envelope{Timestamp: stampFrom(top["timestamp"])}
	if outer, ok := object(top["body"]); ok && present(outer["data"]) {
		env.Data = outer["data"]
	}

	result, err := recognizer.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		env.Rejection = []string{err.Error()}
		return env, nil
	}
	if !result.Valid() {
		for _, e := range result.Errors() {
			env.Rejection = append(env.Rejection, e.String())
		}
		return env, nil
	}
	env.Conversation = decodeConversation(env.Data)
	return env, nil
}

func decodeConversation(data json.RawMessage) *Conversation {
	fields, _ := object(data)
	c := &Conversation{}

	var id string
	if present(fields["conversation_id"]) && json.Unmarshal(fields["conversation_id"], &id) == nil {
		c.ID = &id
	}

	analysis, _ := object(fields["analysis"])
	// Results stays nil for a non-object; lookups then miss.
	c.Results, _ = object(analysis["data_collection_results"])
	var summary string
	if present(analysis["transcript_summary"]) && json.Unmarshal(analysis["transcript_summary"], &summary) == nil {
		c.TranscriptSummary = &summary
	}

	if present(fields["transcript"]) {
		c.Transcript = fields["transcript"]
	}

	metadata, _ := object(fields["metadata"])
	var secs float64
	if present(metadata["call_duration_secs"]) && json.Unmarshal(metadata["call_duration_secs"], &secs) == nil {
		c.CallDurationSecs = &secs
	}
	return c
}

// object decodes raw as a JSON object. ok is false for anything else.
func object(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if !present(raw) {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}
