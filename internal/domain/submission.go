package domain

import "time"

// Phase is the stage of a submission cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUploading
	PhaseCreating
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseUploading:
		return "uploading"
	case PhaseCreating:
		return "creating"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase ends a cycle.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// SubmissionState is the visible progress of the current submission.
// Details carries the result text: the confirmation on success, the
// classified failure messages on failure.
type SubmissionState struct {
	Phase   Phase
	Message string
	Details []string
	// Cycle identifies the submission the state belongs to; zero while idle.
	Cycle uint64
}

// Busy reports whether a cycle is running or still being displayed.
func (s SubmissionState) Busy() bool {
	return s.Phase != PhaseIdle
}

// SubmissionResult is what Submit returns to its caller.
type SubmissionResult struct {
	ID       string
	Success  bool
	Messages []string
}

// SubmissionRecord is the persisted history entry of one finished cycle.
type SubmissionRecord struct {
	ID            string
	Endpoint      string
	Title         string
	Outcome       Phase
	Messages      []string
	ImageFilename string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// ParsePhase is the inverse of Phase.String. Unknown names map to
// PhaseIdle.
func ParsePhase(s string) Phase {
	for p := PhaseIdle; p <= PhaseFailed; p++ {
		if p.String() == s {
			return p
		}
	}
	return PhaseIdle
}
