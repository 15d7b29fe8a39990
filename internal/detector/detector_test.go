package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"vocacare-intake-go/internal/envelope"
)

func TestShouldAccept_SameStampTwice(t *testing.T) {
	var state PollState
	assert.True(t, ShouldAccept(envelope.NumberStamp(1000), &state))
	assert.False(t, ShouldAccept(envelope.NumberStamp(1000), &state))
	assert.Equal(t, envelope.NumberStamp(1000), state.LastSeenTimestamp)
}

func TestShouldAccept_DistinctStamps(t *testing.T) {
	tests := []struct {
		name   string
		t1, t2 envelope.Stamp
	}{
		{"increasing numbers", envelope.NumberStamp(1000), envelope.NumberStamp(2000)},
		{"older second stamp", envelope.NumberStamp(2000), envelope.NumberStamp(1000)},
		{"iso strings", envelope.StringStamp("2025-11-08T10:00:00Z"), envelope.StringStamp("2025-11-08T10:00:02Z")},
		{"number then string", envelope.NumberStamp(1000), envelope.StringStamp("1000")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var state PollState
			assert.True(t, ShouldAccept(tt.t1, &state))
			assert.True(t, ShouldAccept(tt.t2, &state))
			assert.Equal(t, tt.t2, state.LastSeenTimestamp)
		})
	}
}

func TestShouldAccept_AbsentNeverAccepted(t *testing.T) {
	var state PollState
	assert.False(t, ShouldAccept(envelope.Stamp{}, &state))
	assert.Equal(t, PollState{}, state)

	state = PollState{Enabled: true, LastSeenTimestamp: envelope.NumberStamp(7)}
	assert.False(t, ShouldAccept(envelope.Stamp{}, &state))
	assert.Equal(t, PollState{Enabled: true, LastSeenTimestamp: envelope.NumberStamp(7)}, state)
}

func TestShouldAccept_DoesNotTouchEnabled(t *testing.T) {
	state := PollState{Enabled: true}
	assert.True(t, ShouldAccept(envelope.StringStamp("a"), &state))
	assert.True(t, state.Enabled)
}
