package model

import "time"

type Specialty struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Professional struct {
	ID            string    `json:"id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	LicenseNumber string    `json:"license_number"`
	SpecialtyID   string    `json:"specialty_id"`
	SpecialtyName string    `json:"specialty_name,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

type ProfessionalFilter struct {
	Active      ActiveFilter
	SpecialtyID string
	Limit       int
}
