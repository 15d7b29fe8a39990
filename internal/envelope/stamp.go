package envelope

import (
	"bytes"
	"encoding/json"
	"strconv"
)

type stampKind uint8

const (
	stampNone stampKind = iota
	stampNumber
	stampString
	stampOther
)

// Stamp is the comparable form of an envelope's top-level "timestamp".
// Two stamps are equal when the delivered values are equal: numbers compare
// numerically, strings byte-wise, and a number never equals a string.
// The zero Stamp stands for an absent or null timestamp.
type Stamp struct {
	kind stampKind
	text string
}

func NumberStamp(f float64) Stamp {
	return Stamp{kind: stampNumber, text: strconv.FormatFloat(f, 'f', -1, 64)}
}

func StringStamp(s string) Stamp {
	return Stamp{kind: stampString, text: s}
}

func (s Stamp) IsZero() bool { return s.kind == stampNone }

func (s Stamp) String() string {
	if s.kind == stampNone {
		return "<none>"
	}
	return s.text
}

func (s Stamp) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case stampNone:
		return []byte("null"), nil
	case stampString:
		return json.Marshal(s.text)
	default:
		return []byte(s.text), nil
	}
}

func stampFrom(raw json.RawMessage) Stamp {
	raw = bytes.TrimSpace(raw)
	if !present(raw) {
		return Stamp{}
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Stamp{kind: stampOther, text: string(raw)}
		}
		return StringStamp(s)
	case '{', '[', 't', 'f':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return Stamp{kind: stampOther, text: string(raw)}
		}
		return Stamp{kind: stampOther, text: buf.String()}
	default:
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return Stamp{kind: stampNumber, text: string(raw)}
		}
		return NumberStamp(f)
	}
}

func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}
