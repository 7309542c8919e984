package api

// JobStatus is the lifecycle state of a download job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusComplete   JobStatus = "complete"
	StatusFailed     JobStatus = "failed"
)

// Self-transitions are allowed so duplicate delivery is a no-op. Terminal
// states have no exits. A queued job may jump straight to a terminal state:
// the worker can fail it before it starts, and a lost processing frame must
// not block the completion that follows it.
var allowedTransitions = map[JobStatus]map[JobStatus]bool{
	StatusQueued: {
		StatusQueued:     true,
		StatusProcessing: true,
		StatusComplete:   true,
		StatusFailed:     true,
	},
	StatusProcessing: {
		StatusProcessing: true,
		StatusComplete:   true,
		StatusFailed:     true,
	},
	StatusComplete: {
		StatusComplete: true,
	},
	StatusFailed: {
		StatusFailed: true,
	},
}

func IsKnownStatus(status JobStatus) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func CanTransition(from, to JobStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// IsTerminal reports whether no further transition is expected.
func (s JobStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}
