package aggregator

import (
	"strings"

	"vocacare-intake-go/internal/types"
)

const unspecified = "unspecified"

type Insight struct {
	TotalPatients       int            `json:"total_patients"`
	ByGender            map[string]int `json:"by_gender"`
	ByPreferredDoctor   map[string]int `json:"by_preferred_doctor"`
	ByStatus            map[string]int `json:"by_status"`
	AvgCallDurationSecs float64        `json:"avg_call_duration_secs"`
}

func Aggregate(docs []types.PatientDocument) Insight {
	ins := Insight{
		TotalPatients:     len(docs),
		ByGender:          map[string]int{},
		ByPreferredDoctor: map[string]int{},
		ByStatus:          map[string]int{},
	}
	var total float64
	var timed int
	for _, d := range docs {
		ins.ByGender[bucket(strings.ToLower(d.Gender.String()))]++
		ins.ByPreferredDoctor[bucket(d.PreferredDoctor.String())]++
		ins.ByStatus[bucket(StatusOf(d))]++
		if d.CallDuration != nil {
			total += *d.CallDuration
			timed++
		}
	}
	if timed > 0 {
		ins.AvgCallDurationSecs = total / float64(timed)
	}
	return ins
}

// StatusOf applies the backend's default status.
func StatusOf(d types.PatientDocument) string {
	if d.Status == "" {
		return "completed"
	}
	return d.Status
}

// SourceOf applies the backend's default source.
func SourceOf(d types.PatientDocument) string {
	if d.Source == "" {
		return "elevenlabs"
	}
	return d.Source
}

func bucket(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return unspecified
	}
	return s
}
