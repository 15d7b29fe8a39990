package extractor

import (
	"bytes"
	"encoding/json"
	"time"

	"vocacare-intake-go/internal/envelope"
	"vocacare-intake-go/internal/types"
)

// isoMillis matches the ISO-8601 form the dashboard has always shown.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// collectedFields maps vendor data-collection keys onto record fields.
// "Address " keeps its trailing space: that is the key the vendor sends.
var collectedFields = []struct {
	key   string
	field func(*types.PatientRecord) *types.FieldValue
}{
	{"Name", func(r *types.PatientRecord) *types.FieldValue { return &r.Name }},
	{"Age", func(r *types.PatientRecord) *types.FieldValue { return &r.Age }},
	{"Gender", func(r *types.PatientRecord) *types.FieldValue { return &r.Gender }},
	{"Contact", func(r *types.PatientRecord) *types.FieldValue { return &r.Contact }},
	{"Address ", func(r *types.PatientRecord) *types.FieldValue { return &r.Address }},
	{"Reason", func(r *types.PatientRecord) *types.FieldValue { return &r.Reason }},
	{"Preferred Doctor", func(r *types.PatientRecord) *types.FieldValue { return &r.PreferredDoctor }},
	{"Previous Medical History", func(r *types.PatientRecord) *types.FieldValue { return &r.MedicalHistory }},
	{"Emergency Contact", func(r *types.PatientRecord) *types.FieldValue { return &r.EmergencyContact }},
	{"Appointment Preference", func(r *types.PatientRecord) *types.FieldValue { return &r.AppointmentPreference }},
}

// CollectedKeys returns the vendor keys read by the extractor, in record order.
func CollectedKeys() []string {
	keys := make([]string, len(collectedFields))
	for i, f := range collectedFields {
		keys[i] = f.key
	}
	return keys
}

type Extractor struct {
	now func() time.Time
}

type Option func(*Extractor)

// WithClock overrides the clock used to stamp extracted records.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

func New(opts ...Option) *Extractor {
	e := &Extractor{now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

var std = New()

// Extract normalizes env with the wall clock. See Extractor.Extract.
func Extract(env *envelope.Envelope) *types.PatientRecord {
	return std.Extract(env)
}

// Extract returns nil when env was not recognized. Otherwise every collected
// field is set, falling back to "" when the key, its wrapper or its value is
// missing or null.
func (e *Extractor) Extract(env *envelope.Envelope) *types.PatientRecord {
	if !env.Recognized() {
		return nil
	}
	c := env.Conversation

	rec := &types.PatientRecord{
		ConversationID: c.ID,
		Transcript:     c.Transcript,
		CallDuration:   c.CallDurationSecs,
		Timestamp:      e.now().UTC().Format(isoMillis),
	}
	for _, f := range collectedFields {
		*f.field(rec) = collectedValue(c.Results[f.key])
	}
	return rec
}

func collectedValue(raw json.RawMessage) types.FieldValue {
	var wrapper map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &wrapper) != nil {
		return types.FieldValue{}
	}
	value, ok := wrapper["value"]
	if !ok {
		return types.FieldValue{}
	}
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return types.FieldValue{}
	}
	return types.NewFieldValue(v)
}
