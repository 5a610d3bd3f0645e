package document

// Status is the lifecycle state of a document.
//
// pending -> processing -> completed | failed. The terminal states never
// transition automatically; a fresh processing request re-enters processing
// from failed (or completed, for a re-run).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// CanStart reports whether a processing attempt may begin from s. Only an
// in-flight attempt blocks a new one.
func CanStart(s Status) bool {
	return s != StatusProcessing
}

// StartableStatuses lists every status CanStart accepts, for storage
// queries that need the rule as a set.
func StartableStatuses() []Status {
	startable := make([]Status, 0, len(allStatuses))
	for _, s := range allStatuses {
		if CanStart(s) {
			startable = append(startable, s)
		}
	}
	return startable
}
