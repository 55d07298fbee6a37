package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/clinicdesk/libs/httpx"
)

type Routes struct {
	Appointments  *AppointmentHandler
	Professionals *ProfessionalHandler
	Patients      *PatientHandler
	Notes         *NoteHandler
	// Public wraps the availability and booking routes, typically with a rate limiter.
	Public httpx.Middleware
}

var (
	anyRole   = []httpx.Role{httpx.RoleManager, httpx.RoleReceptionist, httpx.RoleProfessional}
	frontDesk = []httpx.Role{httpx.RoleManager, httpx.RoleReceptionist}
	clinical  = []httpx.Role{httpx.RoleManager, httpx.RoleProfessional}
	manager   = []httpx.Role{httpx.RoleManager}
)

func (rt Routes) Register(mux *http.ServeMux) {
	handle := func(pattern string, h http.HandlerFunc, roles []httpx.Role) {
		mux.Handle(pattern, httpx.RequireRole(h, roles...))
	}
	public := func(pattern string, h http.HandlerFunc, roles []httpx.Role) {
		var next http.Handler = httpx.RequireRole(h, roles...)
		if rt.Public != nil {
			next = rt.Public(next)
		}
		mux.Handle(pattern, next)
	}

	a := rt.Appointments
	public("GET /api/v1/professionals/{id}/slots", rt.Professionals.Slots, anyRole)
	public("POST /api/v1/appointments/validate", a.Validate, anyRole)
	public("POST /api/v1/appointments", a.Create, frontDesk)
	handle("GET /api/v1/appointments", a.List, anyRole)
	handle("GET /api/v1/appointments/transitions", a.Transitions, anyRole)
	handle("GET /api/v1/appointments/{id}", a.Get, anyRole)
	handle("PUT /api/v1/appointments/{id}/schedule", a.Reschedule, frontDesk)
	handle("PATCH /api/v1/appointments/{id}/status", a.ChangeStatus, anyRole)

	p := rt.Patients
	handle("GET /api/v1/patients", p.List, anyRole)
	handle("POST /api/v1/patients", p.Create, frontDesk)
	handle("GET /api/v1/patients/{id}", p.Get, anyRole)
	handle("PUT /api/v1/patients/{id}", p.Update, frontDesk)
	handle("PATCH /api/v1/patients/{id}/active", p.SetActive, frontDesk)

	pr := rt.Professionals
	handle("GET /api/v1/specialties", pr.Specialties, anyRole)
	handle("GET /api/v1/professionals", pr.List, anyRole)
	handle("POST /api/v1/professionals", pr.Create, manager)
	handle("GET /api/v1/professionals/{id}", pr.Get, anyRole)
	handle("PUT /api/v1/professionals/{id}", pr.Update, manager)
	handle("PATCH /api/v1/professionals/{id}/active", pr.SetActive, manager)
	handle("GET /api/v1/professionals/{id}/schedule", pr.Schedule, anyRole)
	handle("PUT /api/v1/professionals/{id}/schedule", pr.ReplaceSchedule, manager)

	handle("GET /api/v1/clinical-notes", rt.Notes.List, clinical)
	handle("POST /api/v1/clinical-notes", rt.Notes.Create, clinical)
}
