package notifications

// JobStatus is the lifecycle state of a dispatched asynchronous job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobSucceeded  JobStatus = "succeeded"
	JobFailed     JobStatus = "failed"
	JobTimeout    JobStatus = "timeout"
)

// JobStatuses lists the five recognized states.
var JobStatuses = []JobStatus{
	JobQueued,
	JobProcessing,
	JobSucceeded,
	JobFailed,
	JobTimeout,
}

// Valid reports whether s is one of the five recognized states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobProcessing, JobSucceeded, JobFailed, JobTimeout:
		return true
	}
	return false
}

// TerminalStatuses lists the final states. Both storage layers build their
// SQL freeze guard from this list, so it is the single source of truth for
// which states a job can never leave.
var TerminalStatuses = []JobStatus{
	JobSucceeded,
	JobFailed,
	JobTimeout,
}

// Terminal reports whether s is a final state. Jobs in a terminal state are
// frozen: further updates are accepted but never mutate the row.
func (s JobStatus) Terminal() bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether a job currently in s may move to next.
// Terminal states are frozen; transitions among the non-terminal states are
// permissive, including moves back to queued.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	return next.Valid() && !s.Terminal()
}

// RequiresError reports whether s carries error_code/error_msg. All other
// states clear both fields.
func (s JobStatus) RequiresError() bool {
	return s == JobFailed || s == JobTimeout
}
