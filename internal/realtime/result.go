package realtime

type Status string

const (
	StatusOK          Status = "ok"
	StatusUnreachable Status = "unreachable"
	StatusMalformed   Status = "malformed"
	StatusBusy        Status = "busy"
	StatusRejected    Status = "rejected"
	StatusNoAnswer    Status = "no-answer"

	// StatusFailed reports a server side failure, such as a message that
	// could not be stored.
	StatusFailed Status = "failed"
)

// Result is the outcome of one inbound event. Anything other than ok is sent
// back to the originating connection as an ack.
type Result struct {
	Event  string `json:"event"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Target string `json:"target,omitempty"`
}

func (r Result) OK() bool { return r.Status == StatusOK }

func success(event string) Result {
	return Result{Event: event, Status: StatusOK}
}

func malformed(event, reason string) Result {
	return Result{Event: event, Status: StatusMalformed, Reason: reason}
}

func rejected(event, reason string) Result {
	return Result{Event: event, Status: StatusRejected, Reason: reason}
}

func unreachable(event, target string) Result {
	return Result{Event: event, Status: StatusUnreachable, Reason: "target is offline", Target: target}
}
