package domain

// ExecutionResult is the normalized outcome of one strategy attempt.
// Exactly one of the two variants holds: OK with File+Metadata set, or
// !OK with Err carrying the raw failure message. Adapters always return
// one of these and never let errors or panics cross the runner boundary.
type ExecutionResult struct {
	OK       bool
	File     string
	Metadata VideoMetadata
	Err      string
}

// Succeed builds the success variant.
func Succeed(file string, meta VideoMetadata) ExecutionResult {
	return ExecutionResult{OK: true, File: file, Metadata: meta}
}

// Fail builds the failure variant from a raw message.
func Fail(msg string) ExecutionResult {
	return ExecutionResult{Err: msg}
}

// Failf builds the failure variant from a wrapped error message.
func Failf(prefix string, err error) ExecutionResult {
	if err == nil {
		return Fail(prefix)
	}
	return Fail(prefix + ": " + err.Error())
}

// AttemptRecord is one entry of a job's attempt log.
type AttemptRecord struct {
	Strategy string `json:"strategy"`
	Error    string `json:"error"`
}

// AttemptLog accumulates per-strategy failures across one job, in
// catalog order. Attached to the final failure for diagnostics.
type AttemptLog []AttemptRecord

// Lines renders the log as "[name]: message" strings, the shape the
// serving layer exposes under details.all_strategy_errors.
func (l AttemptLog) Lines() []string {
	out := make([]string, 0, len(l))
	for _, r := range l {
		msg := r.Error
		if len(msg) > 200 {
			msg = msg[:200]
		}
		out = append(out, "["+r.Strategy+"]: "+msg)
	}
	return out
}
