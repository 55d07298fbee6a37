package scheduling

import "time"

// SlotProposal is one grid slot of a day with its derived occupancy.
type SlotProposal struct {
	Start    TimeOfDay `json:"start"`
	At       time.Time `json:"at"`
	Occupied bool      `json:"occupied"`
}

// SlotGenerator enumerates the bookable slots of one professional on one date.
// Rule times and ledger instants are both interpreted in Location.
type SlotGenerator struct {
	Template Template
	Ledger   Ledger
	Location *time.Location
	// NotBefore hides slots starting earlier than it. Zero shows the whole day.
	NotBefore time.Time
}

// Proposals returns every grid slot of the date in ascending order, including
// occupied ones. A weekday without rules yields nothing.
func (g SlotGenerator) Proposals(professionalID string, d Date) []SlotProposal {
	loc := g.location()
	var out []SlotProposal
	for _, r := range g.Template.RulesFor(professionalID, d.Weekday()) {
		for s := r.Start; s.Add(r.SlotMinutes) <= r.End; s = s.Add(r.SlotMinutes) {
			at := d.At(s, loc)
			// Starts skipped by a daylight saving jump do not exist on the clinic clock.
			if day, tod, _ := ClockOf(at, loc); day != d || tod != s {
				continue
			}
			if !g.NotBefore.IsZero() && at.Before(g.NotBefore) {
				continue
			}
			out = append(out, SlotProposal{
				Start:    s,
				At:       at,
				Occupied: g.Ledger.IsOccupied(professionalID, at, ""),
			})
		}
	}
	return out
}

// Generate returns the free slot starts of the date in ascending order.
func (g SlotGenerator) Generate(professionalID string, d Date) []TimeOfDay {
	var free []TimeOfDay
	for _, p := range g.Proposals(professionalID, d) {
		if !p.Occupied {
			free = append(free, p.Start)
		}
	}
	return free
}

func (g SlotGenerator) location() *time.Location {
	if g.Location == nil {
		return time.Local
	}
	return g.Location
}
