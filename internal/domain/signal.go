package domain

import "time"

// SubmissionChannel is the bus channel submission states are published on.
const SubmissionChannel = "ch:submission"

// StateSignal is the wire form of a SubmissionState on the bus and the
// websocket stream.
type StateSignal struct {
	Cycle     uint64    `json:"cycle"`
	Phase     string    `json:"phase"`
	Message   string    `json:"message"`
	Details   []string  `json:"details,omitempty"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStateSignal converts a state for publishing.
func NewStateSignal(st SubmissionState, endpoint string, now time.Time) StateSignal {
	return StateSignal{
		Cycle:     st.Cycle,
		Phase:     st.Phase.String(),
		Message:   st.Message,
		Details:   st.Details,
		Endpoint:  endpoint,
		Timestamp: now,
	}
}
