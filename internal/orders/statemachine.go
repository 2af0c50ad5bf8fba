package orders

import (
	"strings"
	"time"
)

// defaultFailureMessage is recorded when an order fails without a reason.
const defaultFailureMessage = "order marked as failed"

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// AllowedTransitions returns the statuses reachable from s. Never nil.
func AllowedTransitions(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type TransitionRequest struct {
	Status       Status
	ErrorMessage string
}

// Transition applies req to a copy of o. errorMessage is set exactly when the
// new status is FAILED.
func Transition(o Order, req TransitionRequest, now time.Time) (Order, error) {
	if !CanTransition(o.Status, req.Status) {
		return o, &TransitionError{
			Current:   o.Status,
			Requested: req.Status,
			Allowed:   AllowedTransitions(o.Status),
		}
	}

	msg := strings.TrimSpace(req.ErrorMessage)
	if msg != "" && req.Status != StatusFailed {
		return o, ErrErrorMessageNotAllowed
	}

	o.Status = req.Status
	o.UpdatedAt = now.UTC()
	o.ErrorMessage = ""
	if req.Status == StatusFailed {
		if msg == "" {
			msg = defaultFailureMessage
		}
		o.ErrorMessage = msg
	}
	return o, nil
}
