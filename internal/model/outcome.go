package model

import "fmt"

// OutcomeStatus classifies the result of a multi-step operation.
type OutcomeStatus int

const (
	// Success means every step completed.
	Success OutcomeStatus = iota
	// PartialFailure means a later step failed after earlier steps changed data.
	PartialFailure
	// Failure means the operation did not change any data.
	Failure
)

func (s OutcomeStatus) String() string {
	switch s {
	case Success:
		return "success"
	case PartialFailure:
		return "partial failure"
	case Failure:
		return "failure"
	default:
		return fmt.Sprintf("OutcomeStatus(%d)", int(s))
	}
}

// Outcome is the enumerated result of a delete or restore sequence.
type Outcome struct {
	Status OutcomeStatus
	Detail string
	Err    error
}

// Succeeded returns a Success outcome.
func Succeeded(detail string) Outcome {
	return Outcome{Status: Success, Detail: detail}
}

// Partial returns a PartialFailure outcome.
func Partial(detail string, err error) Outcome {
	return Outcome{Status: PartialFailure, Detail: detail, Err: err}
}

// Failed returns a Failure outcome.
func Failed(detail string, err error) Outcome {
	return Outcome{Status: Failure, Detail: detail, Err: err}
}

// OK reports whether the operation fully succeeded.
func (o Outcome) OK() bool { return o.Status == Success }

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: %s: %v", o.Status, o.Detail, o.Err)
	}
	return fmt.Sprintf("%s: %s", o.Status, o.Detail)
}
