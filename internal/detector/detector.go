// Package detector decides whether a polled delivery is new.
package detector

import "vocacare-intake-go/internal/envelope"

// PollState is the pipeline's mutable state. The zero value is the start
// state: polling disabled, nothing seen yet.
type PollState struct {
	Enabled           bool           `json:"enabled"`
	LastSeenTimestamp envelope.Stamp `json:"lastSeenTimestamp"`
}

// ShouldAccept reports whether candidate differs from the last accepted
// timestamp and, if so, records it. Absent candidates are never new.
//
// Only equality is checked. A distinct but older timestamp is accepted.
func ShouldAccept(candidate envelope.Stamp, state *PollState) bool {
	if candidate.IsZero() || candidate == state.LastSeenTimestamp {
		return false
	}
	state.LastSeenTimestamp = candidate
	return true
}
