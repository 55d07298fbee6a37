package scheduling

import (
	"sort"
	"time"
)

type Appointment struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patient_id"`
	ProfessionalID string    `json:"professional_id"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	Status         Status    `json:"status"`
	Reason         string    `json:"reason,omitempty"`
	Notes          string    `json:"notes,omitempty"`
}

// Ledger is a snapshot of existing appointments. Only appointments whose status
// occupies a slot are kept; the snapshot is never refreshed or mutated.
type Ledger struct {
	byProfessional map[string][]Appointment
}

func NewLedger(appts []Appointment) Ledger {
	l := Ledger{byProfessional: map[string][]Appointment{}}
	for _, a := range appts {
		if !a.Status.Occupies() {
			continue
		}
		l.byProfessional[a.ProfessionalID] = append(l.byProfessional[a.ProfessionalID], a)
	}
	for _, list := range l.byProfessional {
		sort.SliceStable(list, func(i, j int) bool { return list[i].ScheduledAt.Before(list[j].ScheduledAt) })
	}
	return l
}

// IsOccupied reports whether a non-cancelled appointment of professionalID other
// than excludeID sits exactly at the instant at.
func (l Ledger) IsOccupied(professionalID string, at time.Time, excludeID string) bool {
	list := l.byProfessional[professionalID]
	i := sort.Search(len(list), func(i int) bool { return !list[i].ScheduledAt.Before(at) })
	for ; i < len(list) && list[i].ScheduledAt.Equal(at); i++ {
		if excludeID == "" || list[i].ID != excludeID {
			return true
		}
	}
	return false
}

// AppointmentsOn returns the day's non-cancelled appointments of professionalID,
// where the day is the civil date d in loc.
func (l Ledger) AppointmentsOn(professionalID string, d Date, loc *time.Location) []Appointment {
	from := d.At(Midnight, loc)
	to := d.AddDays(1).At(Midnight, loc)
	var out []Appointment
	for _, a := range l.byProfessional[professionalID] {
		if !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to) {
			out = append(out, a)
		}
	}
	return out
}
