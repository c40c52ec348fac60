package dispatcher

import "github.com/ngee044/realtimechat/internal/apperror"

// RunFunc is the body of a Job. It receives a PoolHandle so a job running
// inside a worker can re-enqueue itself (the self-rescheduling idiom used
// by the broadcast poll and the periodic session-snapshot job).
type RunFunc func(pool *PoolHandle) apperror.Result

// Job is a unit of work tagged with a priority. The source expresses the
// four parsing/executing variants as four C++ classes each storing a
// callback; here a single Job carries its behavior as a RunFunc closure,
// so dispatch stays by-priority, not by-type.
type Job struct {
	Priority Priority
	Name     string
	run      RunFunc
}

// NewJob builds a Job from a priority, a name (used only for logging), and
// its body.
func NewJob(priority Priority, name string, run RunFunc) *Job {
	return &Job{Priority: priority, Name: name, run: run}
}
