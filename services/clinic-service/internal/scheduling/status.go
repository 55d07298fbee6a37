package scheduling

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusAttended  Status = "ATTENDED"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
)

var AllStatuses = []Status{StatusPending, StatusConfirmed, StatusAttended, StatusCancelled, StatusNoShow}

var legacyStatuses = map[string]Status{
	"PENDIENTE":  StatusPending,
	"CONFIRMADO": StatusConfirmed,
	"ATENDIDO":   StatusAttended,
	"CANCELADO":  StatusCancelled,
	"AUSENTE":    StatusNoShow,
}

// transitions is the complete table of allowed status changes.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusAttended, StatusNoShow, StatusCancelled},
	StatusAttended:  {StatusCancelled},
	StatusNoShow:    {StatusCancelled},
	StatusCancelled: nil,
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Occupies reports whether an appointment in this status holds its slot.
func (s Status) Occupies() bool { return s.Valid() && s != StatusCancelled }

// Reschedulable reports whether the appointment may still be moved.
func (s Status) Reschedulable() bool { return s == StatusPending || s == StatusConfirmed }

// ParseStatus accepts canonical names and the legacy Spanish labels.
func ParseStatus(raw string) (Status, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if s := Status(v); s.Valid() {
		return s, nil
	}
	if s, ok := legacyStatuses[v]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", raw)
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transitions lists the states reachable from from in one step.
func Transitions(from Status) []Status {
	return append([]Status(nil), transitions[from]...)
}

func CheckTransition(from, to Status) Verdict {
	if !CanTransition(from, to) {
		return Reject(ReasonInvalidStateTransition)
	}
	return Accept()
}
