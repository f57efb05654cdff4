package ir

import "errors"

// ErrFailStep signals that the current step must be abandoned and retried.
// It is the non-fatal member of the failure taxonomy: the driver discards
// ephemeral state and re-runs the step without advancing time.
var ErrFailStep = errors.New("ir: step failed")

// Fault is a user-level fault raised by a method, for example on detecting a
// non-finite state. Faults abort the run.
type Fault struct {
	Name    string
	Message string
}

func (f *Fault) Error() string {
	if f.Message == "" {
		return "fault: " + f.Name
	}
	return "fault: " + f.Name + ": " + f.Message
}
