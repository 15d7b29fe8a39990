package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FieldValue is a scalar copied verbatim out of a vendor `{ "value": ... }`
// wrapper. The zero value means absent or null and renders as "".
// Numbers stay json.Number; display code decides how to coerce them.
type FieldValue struct {
	v any
}

func Text(s string) FieldValue { return FieldValue{v: s} }

func Number(n json.Number) FieldValue { return FieldValue{v: n} }

// NewFieldValue wraps a decoded JSON scalar. nil yields the empty value.
func NewFieldValue(v any) FieldValue {
	if v == nil {
		return FieldValue{}
	}
	return FieldValue{v: v}
}

func (f FieldValue) IsEmpty() bool { return f.v == nil }

// Value returns the underlying scalar, or "" when empty.
func (f FieldValue) Value() any {
	if f.v == nil {
		return ""
	}
	return f.v
}

func (f FieldValue) String() string {
	switch v := f.v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

func (f FieldValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Value())
}

func (f *FieldValue) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*f = NewFieldValue(v)
	return nil
}

// PatientRecord is the normalized output of extraction. The ten collected
// fields are always present; the trailing three are copied through only when
// the vendor sent them. Transcript is the vendor's array as sent, turn fields
// and nulls included.
type PatientRecord struct {
	Name                  FieldValue `json:"name"`
	Age                   FieldValue `json:"age"`
	Gender                FieldValue `json:"gender"`
	Contact               FieldValue `json:"contact"`
	Address               FieldValue `json:"address"`
	Reason                FieldValue `json:"reason"`
	PreferredDoctor       FieldValue `json:"preferredDoctor"`
	MedicalHistory        FieldValue `json:"medicalHistory"`
	EmergencyContact      FieldValue `json:"emergencyContact"`
	AppointmentPreference FieldValue `json:"appointmentPreference"`

	ConversationID *string         `json:"conversationId,omitempty"`
	Timestamp      string          `json:"timestamp"`
	Transcript     json.RawMessage `json:"transcript,omitempty"`
	CallDuration   *float64        `json:"callDuration,omitempty"`
}

// PatientDocument is a stored registration as listed by the backend's
// /api/patients endpoint.
type PatientDocument struct {
	Name                  FieldValue `json:"name"`
	Age                   FieldValue `json:"age"`
	Gender                FieldValue `json:"gender"`
	Contact               FieldValue `json:"contact"`
	Address               FieldValue `json:"address"`
	Reason                FieldValue `json:"reason"`
	PreferredDoctor       FieldValue `json:"preferredDoctor"`
	MedicalHistory        FieldValue `json:"medicalHistory"`
	EmergencyContact      FieldValue `json:"emergencyContact"`
	AppointmentPreference FieldValue `json:"appointmentPreference"`

	ConversationID string   `json:"conversationId,omitempty"`
	CallDuration   *float64 `json:"callDuration,omitempty"`
	Source         string   `json:"source,omitempty"`
	CreatedAt      string   `json:"createdAt,omitempty"`
	Status         string   `json:"status,omitempty"`
}
