package scheduling

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidRule = errors.New("invalid schedule rule")

// Rule is one weekly working block of a professional. Slots start at Start and
// step by SlotMinutes; a trailing period shorter than SlotMinutes is not offered.
type Rule struct {
	ProfessionalID string    `json:"professional_id"`
	Day            Weekday   `json:"day"`
	Start          TimeOfDay `json:"start"`
	End            TimeOfDay `json:"end"`
	SlotMinutes    int       `json:"slot_minutes"`
}

func (r Rule) Validate() error {
	switch {
	case !r.Day.Valid():
		return fmt.Errorf("%w: unknown weekday %d", ErrInvalidRule, int(r.Day))
	case !r.Start.Valid() || !r.End.Valid():
		return fmt.Errorf("%w: %s %s-%s outside the day", ErrInvalidRule, r.Day, r.Start, r.End)
	case r.Start >= r.End:
		return fmt.Errorf("%w: %s start %s is not before end %s", ErrInvalidRule, r.Day, r.Start, r.End)
	case r.SlotMinutes <= 0:
		return fmt.Errorf("%w: %s slot length must be positive (got %d)", ErrInvalidRule, r.Day, r.SlotMinutes)
	}
	return nil
}

// SlotCount is the number of whole slots that fit in the block.
func (r Rule) SlotCount() int {
	if r.SlotMinutes <= 0 || r.End <= r.Start {
		return 0
	}
	return int(r.End-r.Start) / r.SlotMinutes
}

// SlotStarts lists every grid start in ascending order.
func (r Rule) SlotStarts() []TimeOfDay {
	n := r.SlotCount()
	out := make([]TimeOfDay, 0, n)
	for s := r.Start; r.SlotMinutes > 0 && s.Add(r.SlotMinutes) <= r.End; s = s.Add(r.SlotMinutes) {
		out = append(out, s)
	}
	return out
}

// Aligned reports whether tod is the start of one of the block's whole slots.
func (r Rule) Aligned(tod TimeOfDay) bool {
	if r.SlotMinutes <= 0 || tod < r.Start {
		return false
	}
	offset := int(tod - r.Start)
	return offset%r.SlotMinutes == 0 && offset/r.SlotMinutes < r.SlotCount()
}

type dayKey struct {
	professionalID string
	day            Weekday
}

// Template is the read-only weekly availability of one or more professionals.
type Template struct {
	byDay map[dayKey][]Rule
}

// NewTemplate indexes rules by professional and weekday. Several blocks per day
// are allowed (split shifts) as long as they do not overlap.
func NewTemplate(rules []Rule) (Template, error) {
	t := Template{byDay: make(map[dayKey][]Rule, len(rules))}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return Template{}, err
		}
		k := dayKey{r.ProfessionalID, r.Day}
		t.byDay[k] = append(t.byDay[k], r)
	}
	for k, rs := range t.byDay {
		sort.Slice(rs, func(i, j int) bool { return rs[i].Start < rs[j].Start })
		for i := 1; i < len(rs); i++ {
			if rs[i].Start < rs[i-1].End {
				return Template{}, fmt.Errorf("%w: %s blocks %s-%s and %s-%s overlap",
					ErrInvalidRule, k.day, rs[i-1].Start, rs[i-1].End, rs[i].Start, rs[i].End)
			}
		}
	}
	return t, nil
}

// RuleFor returns the first block of the day. ok is false when the professional
// does not work that weekday.
func (t Template) RuleFor(professionalID string, day Weekday) (Rule, bool) {
	rs := t.byDay[dayKey{professionalID, day}]
	if len(rs) == 0 {
		return Rule{}, false
	}
	return rs[0], true
}

// RulesFor returns the day's blocks ordered by start.
func (t Template) RulesFor(professionalID string, day Weekday) []Rule {
	return t.byDay[dayKey{professionalID, day}]
}

// Rules returns every rule of professionalID ordered by weekday then start.
func (t Template) Rules(professionalID string) []Rule {
	var out []Rule
	for d := Monday; d <= Sunday; d++ {
		out = append(out, t.byDay[dayKey{professionalID, d}]...)
	}
	return out
}
