package model

import "time"

type Sex string

const (
	SexMale   Sex = "MASCULINO"
	SexFemale Sex = "FEMENINO"
	SexOther  Sex = "OTRO"
)

func (s Sex) Valid() bool {
	return s == SexMale || s == SexFemale || s == SexOther
}

type Patient struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	DNI       string    `json:"dni"`
	BirthDate time.Time `json:"birth_date"`
	Sex       Sex       `json:"sex"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ActiveFilter selects patients or professionals by their active flag.
type ActiveFilter string

const (
	OnlyActive   ActiveFilter = "active"
	OnlyInactive ActiveFilter = "inactive"
	AnyActive    ActiveFilter = "all"
)

func ParseActiveFilter(raw string) (ActiveFilter, bool) {
	switch ActiveFilter(raw) {
	case "", OnlyActive:
		return OnlyActive, true
	case OnlyInactive, AnyActive:
		return ActiveFilter(raw), true
	}
	return "", false
}

type PatientFilter struct {
	Active ActiveFilter
	// Search matches the start of last name, first name or DNI.
	Search string
	Limit  int
}
