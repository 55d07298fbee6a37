package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/model"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/scheduling"
)

var art = time.FixedZone("ART", -3*60*60)

// 2025-03-10 is a Monday.
var monday = scheduling.Date{Year: 2025, Month: time.March, Day: 10}

func at(hour, minute int) time.Time {
	return time.Date(2025, time.March, 10, hour, minute, 0, 0, art)
}

// memStore is an in-memory stand-in for the storage layer. It enforces the
// live-slot uniqueness the database index provides.
type memStore struct {
	mu            sync.Mutex
	rules         map[string][]scheduling.Rule
	professionals map[string]bool
	patients      map[string]bool
	appts         map[string]model.Appointment
	keys          map[string]string
	events        []outbox.Event
	// ghost is a live appointment only the uniqueness guard sees.
	ghost *time.Time
	// beforeCreate runs once just before Create, simulating a concurrent writer.
	beforeCreate func()
	invalidated  []string
}

func newMemStore() *memStore {
	return &memStore{
		rules: map[string][]scheduling.Rule{
			"pro-1": {{ProfessionalID: "pro-1", Day: scheduling.Monday, Start: 9 * 60, End: 12 * 60, SlotMinutes: 30}},
		},
		professionals: map[string]bool{"pro-1": true, "pro-off": false},
		patients:      map[string]bool{"pat-1": true, "pat-2": true},
		appts:         map[string]model.Appointment{},
		keys:          map[string]string{},
	}
}

func (m *memStore) WeeklyRules(_ context.Context, professionalID string) ([]scheduling.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]scheduling.Rule(nil), m.rules[professionalID]...), nil
}

func (m *memStore) AppointmentsBetween(_ context.Context, professionalID string, from, to time.Time) ([]scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []scheduling.Appointment
	for _, a := range m.appts {
		if a.ProfessionalID == professionalID && a.Status.Occupies() && !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to) {
			out = append(out, a.Appointment)
		}
	}
	return out, nil
}

func (m *memStore) ProfessionalActive(_ context.Context, id string) (bool, error) {
	return m.professionals[id], nil
}

func (m *memStore) PatientExists(_ context.Context, id string) (bool, error) {
	return m.patients[id], nil
}

func (m *memStore) Get(_ context.Context, id string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, model.ErrNotFound
	}
	return a, nil
}

func (m *memStore) List(_ context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for _, a := range m.appts {
		if f.ProfessionalID != "" && a.ProfessionalID != f.ProfessionalID {
			continue
		}
		if !f.From.IsZero() && a.ScheduledAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !a.ScheduledAt.Before(f.To) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (m *memStore) takenLocked(a model.Appointment) bool {
	if m.ghost != nil && m.ghost.Equal(a.ScheduledAt) {
		return true
	}
	for _, other := range m.appts {
		if other.ID != a.ID && other.ProfessionalID == a.ProfessionalID && other.Status.Occupies() && other.ScheduledAt.Equal(a.ScheduledAt) {
			return true
		}
	}
	return false
}

func (m *memStore) Create(_ context.Context, a model.Appointment, key string, evt outbox.Event) (model.Appointment, error) {
	if m.beforeCreate != nil {
		hook := m.beforeCreate
		m.beforeCreate = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takenLocked(a) {
		return model.Appointment{}, model.ErrSlotTaken
	}
	if _, ok := m.keys[key]; key != "" && ok {
		return model.Appointment{}, model.ErrDuplicate
	}
	m.appts[a.ID] = a
	if key != "" {
		m.keys[key] = a.ID
	}
	m.events = append(m.events, evt)
	return a, nil
}

func (m *memStore) FindByIdempotencyKey(_ context.Context, key string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.keys[key]
	if !ok {
		return model.Appointment{}, model.ErrNotFound
	}
	return m.appts[id], nil
}

func (m *memStore) Update(_ context.Context, id string, mutate func(a *model.Appointment) (outbox.Event, error)) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, model.ErrNotFound
	}
	evt, err := mutate(&a)
	if err != nil {
		return model.Appointment{}, err
	}
	if a.Status.Occupies() && m.takenLocked(a) {
		return model.Appointment{}, model.ErrSlotTaken
	}
	m.appts[id] = a
	m.events = append(m.events, evt)
	return a, nil
}

func (m *memStore) ReplaceSchedule(_ context.Context, professionalID string, rules []scheduling.Rule, evt outbox.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[professionalID] = rules
	m.events = append(m.events, evt)
	return nil
}

func (m *memStore) Invalidate(professionalID string) {
	m.invalidated = append(m.invalidated, professionalID)
}

func newTestService(m *memStore) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(Deps{
		Schedules:    m,
		Ledger:       m,
		Directory:    m,
		Appointments: m,
		Schedule:     m,
		Cache:        m,
	}, logger, Config{Location: art})
}

func mustBook(t *testing.T, svc *Service, hour, minute int) model.Appointment {
	t.Helper()
	res, err := svc.Book(context.Background(), BookRequest{ProfessionalID: "pro-1", PatientID: "pat-1", At: at(hour, minute)})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if !res.Verdict.Accepted {
		t.Fatalf("expected booking accepted, got %s", res.Verdict.Reason)
	}
	return res.Appointment
}

func slotStrings(slots []scheduling.TimeOfDay) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}

func TestAvailableSlotsReflectsBookings(t *testing.T) {
	m := newMemStore()
	svc := newTestService(m)
	ctx := context.Background()

	mustBook(t, svc, 10, 0)
	slots, err := svc.AvailableSlots(ctx, "pro-1", monday)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	got := slotStrings(slots)
	want := []string{"09:00", "09:30", "10:30", "11:00", "11:30"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestAvailableSlotsInactiveProfessional(t *testing.T) {
	svc := newTestService(newMemStore())
	for _, id := range []string{"pro-off", "missing"} {
		slots, err := svc.AvailableSlots(context.Background(), id, monday)
		if err != nil {
			t.Fatalf("AvailableSlots(%s): %v", id, err)
		}
		if len(slots) != 0 {
			t.Fatalf("expected no slots for %s, got %v", id, slotStrings(slots))
		}
	}
}

func TestAvailableSlotsHidePast(t *testing.T) {
	m := newMemStore()
	svc := NewService(Deps{Schedules: m, Ledger: m, Directory: m, Appointments: m}, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		Location: art,
		HidePast: true,
		Now:      func() time.Time { return at(10, 15) },
	})
	slots, err := svc.AvailableSlots(context.Background(), "pro-1", monday)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if got := slotStrings(slots); len(got) != 3 || got[0] != "10:30" {
		t.Fatalf("expected slots from 10:30, got %v", got)
	}
}

func TestValidateBookingReasons(t *testing.T) {
	m := newMemStore()
	svc := newTestService(m)
	mustBook(t, svc, 9, 0)

	tests := []struct {
		name string
		req  scheduling.Request
		want scheduling.Reason
	}{
		{"accepted", scheduling.Request{ProfessionalID: "pro-1", PatientID: "pat-2", At: at(9, 30)}, ""},
		{"inactive professional", scheduling.Request{ProfessionalID: "pro-off", PatientID: "pat-1", At: at(9, 30)}, scheduling.ReasonUnknownProfessional},
		{"unknown professional wins over unknown patient", scheduling.Request{ProfessionalID: "nobody", PatientID: "nobody", At: at(9, 30)}, scheduling.ReasonUnknownProfessional},
		{"unknown patient", scheduling.Request{ProfessionalID: "pro-1", PatientID: "nobody", At: at(9, 30)}, scheduling.ReasonUnknownPatient},
		{"off grid", scheduling.Request{ProfessionalID: "pro-1", PatientID: "pat-1", At: at(9, 15)}, scheduling.ReasonOutsideWorkingHours},
		{"after hours", scheduling.Request{ProfessionalID: "pro-1", PatientID: "pat-1", At: at(12, 0)}, scheduling.ReasonOutsideWorkingHours},
		{"taken", scheduling.Request{ProfessionalID: "pro-1", PatientID: "pat-2", At: at(9, 0)}, scheduling.ReasonSlotAlreadyBooked},
		{"same instant in UTC", scheduling.Request{ProfessionalID: "pro-1", PatientID: "pat-2", At: at(9, 0).UTC()}, scheduling.ReasonSlotAlreadyBooked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := svc.ValidateBooking(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("ValidateBooking: %v", err)
			}
			if tt.want == "" && !v.Accepted {
				t.Fatalf("expected accepted, got %s", v.Reason)
			}
			if tt.want != "" && (v.Accepted || v.Reason != tt.want) {
				t.Fatalf("expected %s, got %+v", tt.want, v)
			}
		})
	}
}

func TestBookEmitsEventAndRejectsDoubleBooking(t *testing.T) {
	m := newMemStore()
	svc := newTestService(m)

	a := mustBook(t, svc, 10, 0)
	if a.Status != scheduling.StatusPending {
		t.Fatalf("expected PENDING, got %s", a.Status)
	}
	if len(m.events) != 1 || m.events[0].EventType != outbox.TypeAppointmentBooked || m.events[0].AggregateID != a.ID {
		t.Fatalf("unexpected events %+v", m.events)
	}

	res, err := svc.Book(context.Background(), BookRequest{ProfessionalID: "pro-1", PatientID: "pat-2", At: at(10, 0)})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if res.Verdict.Accepted || res.Verdict.Reason != scheduling.ReasonSlotAlreadyBooked {
		t.Fatalf("expected SLOT_ALREADY_BOOKED, got %+v", res.Verdict)
	}
	if len(m.events) != 1 {
		t.Fatalf("rejected booking must not emit events, got %d", len(m.events))
	}
}

func TestBookRaceLostReportsSlotAlreadyBooked(t *testing.T) {
	m := newMemStore()
	svc := newTestService(m)
	m.beforeCreate = func() {
		m.mu.Lock()
		m.appts["rival"] = model.Appointment{Appointment: scheduling.Appointment{
			ID: "rival", PatientID: "pat-2", ProfessionalID: "pro-1", ScheduledAt: at(11, 0), Status: scheduling.StatusPending,
		}}
		m.mu.Unlock()
	}
	res, err := svc.Book(context.Background(), BookRequest{ProfessionalID: "pro-1", PatientID: "pat-1", At: at(11, 0)})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if res.Verdict.Reason != scheduling.ReasonSlotAlreadyBooked {
		t.Fatalf("expected SLOT_ALREADY_BOOKED, got %+v", res.Verdict)
	}
}

func TestBookUnexplainedConflictReportsStorageConflict(t *testing.T) {
	m := newMemStore()
	ghost := at(11, 0)
	m.ghost = &ghost
	svc := newTestService(m)
	res, err := svc.Book(context.Background(), BookRequest{ProfessionalID: "pro-1", PatientID: "pat-1", At: at(11, 0)})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if res.Verdict.Reason != scheduling.ReasonStorageConflict {
		t.Fatalf("expected STORAGE_CONFLICT, got %+v", res.Verdict)
	}
}

func TestBookIdempotencyKeyReplays(t *testing.T) {
	m := newMemStore()
	svc := newTestService(m)
	req := BookRequest{ProfessionalID: "pro-1", PatientID: "pat-1", At: at(9, 30), IdempotencyKey: "k-1"}

	first, err := svc.Book(context.Background(), req)
	if err != nil || !first.Verdict.Accepted {
		t.Fatalf("first Book: %+v %v", first, err)
	}
	second, err := svc.Book(context.Background(), req)
	if err != nil {
		t.Fatalf("second Book: %v", err)
	}
	if !second.Replayed || second.Appointment.ID != first.Appointment.ID {
		t.Fatalf("expected replay of %s, got %+v", first.Appointment.ID, second)
	}
	if len(m.appts) != 1 || len(m.events) != 1 {
		t.Fatalf("replay must not write, appts=%d events=%d", len(m.appts), len(m.events))
	}
}

func TestBookIdempotencyKeyReusedForAnotherBooking(t *testing.T) {
	m := newMemStore()
	svc := newTestService(m)
	ctx := context.Background()
	req := BookRequest{ProfessionalID: "pro-1", PatientID: "pat-1", At: at(9, 30), IdempotencyKey: "k-1"}
	if _, err := svc.Book(ctx, req); err != nil {
		t.Fatalf("first Book: %v", err)
	}

	same := req
	same.At = req.At.UTC()
	if res, err := svc.Book(ctx, same); err != nil || !res.Replayed {
		t.Fatalf("same instant in another zone should replay, got %+v %v", res, err)
	}

	for name, mutate := range map[string]func(*BookRequest){
		"other patient": func(r *BookRequest) { r.PatientID = "pat-2" },
		"other time":    func(r *BookRequest) { r.At = at(10, 0) },
	} {
		changed := req
		mutate(&changed)
		res, err := svc.Book(ctx, changed)
		if !errors.Is(err, ErrIdempotencyMismatch) || !errors.Is(err, model.ErrConflict) {
			t.Fatalf("%s: expected ErrIdempotencyMismatch, got %+v %v", name, res, err)
		}
	}
	if len(m.appts) != 1 {
		t.Fatalf("mismatched key must not book, appts=%d", len(m.appts))
	}
}

func TestRescheduleExcludesItself(t *testing.T) {
	m := newMemStore()
	svc := newTestService(m)
	a := mustBook(t, svc, 9, 0)
	mustBook(t, svc, 10, 0)
	ctx := context.Background()

	res, err := svc.Reschedule(ctx, Actor{}, a.ID, at(10, 0))
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if res.Verdict.Reason != scheduling.ReasonSlotAlreadyBooked {
		t.Fatalf("expected SLOT_ALREADY_BOOKED, got %+v", res.Verdict)
	}

	res, err = svc.Reschedule(ctx, Actor{}, a.ID, at(9, 0))
	if err != nil || !res.Verdict.Accepted {
		t.Fatalf("rescheduling onto its own slot should pass: %+v %v", res, err)
	}

	res, err = svc.Reschedule(ctx, Actor{}, a.ID, at(11, 30))
	if err != nil || !res.Verdict.Accepted {
		t.Fatalf("Reschedule: %+v %v", res, err)
	}
	if !res.Appointment.ScheduledAt.Equal(at(11, 30)) {
		t.Fatalf("expected 11:30, got %s", res.Appointment.ScheduledAt)
	}
	last := m.events[len(m.events)-1]
	if last.EventType != outbox.TypeAppointmentRescheduled {
		t.Fatalf("expected rescheduled event, got %s", last.EventType)
	}
}

func TestRescheduleRequiresOpenStatus(t *testing.T) {
	m := newMemStore()
	svc := newTestService(m)
	a := mustBook(t, svc, 9, 0)
	ctx := context.Background()
	if _, err := svc.ChangeStatus(ctx, Actor{}, a.ID, scheduling.StatusCancelled); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	res, err := svc.Reschedule(ctx, Actor{}, a.ID, at(9, 30))
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if res.Verdict.Reason != scheduling.ReasonInvalidStateTransition {
		t.Fatalf("expected INVALID_STATE_TRANSITION, got %+v", res.Verdict)
	}
}

func TestChangeStatusFollowsStateMachine(t *testing.T) {
	m := newMemStore()
	svc := newTestService(m)
	a := mustBook(t, svc, 9, 0)
	ctx := context.Background()

	steps := []struct {
		to     scheduling.Status
		accept bool
	}{
		{scheduling.StatusAttended, false},
		{scheduling.StatusConfirmed, true},
		{scheduling.StatusConfirmed, false},
		{scheduling.StatusAttended, true},
		{scheduling.StatusNoShow, false},
	}
	for i, step := range steps {
		res, err := svc.ChangeStatus(ctx, Actor{}, a.ID, step.to)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if res.Verdict.Accepted != step.accept {
			t.Fatalf("step %d to %s: expected accepted=%v, got %+v", i, step.to, step.accept, res.Verdict)
		}
		if !step.accept && res.Verdict.Reason != scheduling.ReasonInvalidStateTransition {
			t.Fatalf("step %d: unexpected reason %s", i, res.Verdict.Reason)
		}
	}
	got, _ := m.Get(ctx, a.ID)
	if got.Status != scheduling.StatusAttended {
		t.Fatalf("expected ATTENDED, got %s", got.Status)
	}
}

func TestCancelFreesSlot(t *testing.T) {
	m := newMemStore()
	svc := newTestService(m)
	a := mustBook(t, svc, 9, 0)
	if _, err := svc.ChangeStatus(context.Background(), Actor{}, a.ID, scheduling.StatusCancelled); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	res, err := svc.Book(context.Background(), BookRequest{ProfessionalID: "pro-1", PatientID: "pat-2", At: at(9, 0)})
	if err != nil || !res.Verdict.Accepted {
		t.Fatalf("expected cancelled slot to be bookable: %+v %v", res, err)
	}
}

func TestRestrictedActorOwnership(t *testing.T) {
	m := newMemStore()
	svc := newTestService(m)
	a := mustBook(t, svc, 9, 0)
	ctx := context.Background()
	stranger := Actor{ProfessionalID: "pro-2", Restricted: true}
	owner := Actor{ProfessionalID: "pro-1", Restricted: true}

	if _, err := svc.ChangeStatus(ctx, stranger, a.ID, scheduling.StatusConfirmed); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Reschedule(ctx, stranger, a.ID, at(9, 30)); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Get(ctx, stranger, a.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.List(ctx, stranger, model.AppointmentFilter{ProfessionalID: "pro-1"}, scheduling.Date{}); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	list, err := svc.List(ctx, stranger, model.AppointmentFilter{}, scheduling.Date{})
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list for stranger, got %v %v", list, err)
	}
	anonymous := Actor{Restricted: true}
	if _, err := svc.Get(ctx, anonymous, a.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for professional without id, got %v", err)
	}
	if list, err := svc.List(ctx, anonymous, model.AppointmentFilter{}, scheduling.Date{}); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("professional without id must not list, got %v %v", list, err)
	}
	if res, err := svc.ChangeStatus(ctx, owner, a.ID, scheduling.StatusConfirmed); err != nil || !res.Verdict.Accepted {
		t.Fatalf("owner ChangeStatus: %+v %v", res, err)
	}
}

func TestListByDay(t *testing.T) {
	m := newMemStore()
	svc := newTestService(m)
	mustBook(t, svc, 9, 0)
	m.appts["other-day"] = model.Appointment{Appointment: scheduling.Appointment{
		ID: "other-day", PatientID: "pat-1", ProfessionalID: "pro-1", ScheduledAt: at(9, 0).AddDate(0, 0, 7), Status: scheduling.StatusPending,
	}}
	list, err := svc.List(context.Background(), Actor{}, model.AppointmentFilter{}, monday)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 appointment on %s, got %d", monday, len(list))
	}
}

func TestReplaceSchedule(t *testing.T) {
	m := newMemStore()
	svc := newTestService(m)
	ctx := context.Background()

	_, err := svc.ReplaceSchedule(ctx, "pro-1", []scheduling.Rule{
		{Day: scheduling.Tuesday, Start: 9 * 60, End: 11 * 60, SlotMinutes: 60},
		{Day: scheduling.Tuesday, Start: 10 * 60, End: 12 * 60, SlotMinutes: 60},
	})
	if !errors.Is(err, scheduling.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule for overlap, got %v", err)
	}

	rules, err := svc.ReplaceSchedule(ctx, "pro-1", []scheduling.Rule{
		{ProfessionalID: "ignored", Day: scheduling.Tuesday, Start: 14 * 60, End: 16 * 60, SlotMinutes: 60},
		{Day: scheduling.Tuesday, Start: 9 * 60, End: 11 * 60, SlotMinutes: 60},
	})
	if err != nil {
		t.Fatalf("ReplaceSchedule: %v", err)
	}
	if len(rules) != 2 || rules[0].Start != 9*60 || rules[1].ProfessionalID != "pro-1" {
		t.Fatalf("unexpected stored rules %+v", rules)
	}
	if len(m.invalidated) != 1 || m.invalidated[0] != "pro-1" {
		t.Fatalf("expected cache invalidation, got %v", m.invalidated)
	}
	slots, err := svc.AvailableSlots(ctx, "pro-1", monday)
	if err != nil || len(slots) != 0 {
		t.Fatalf("Monday rule should be gone, got %v %v", slotStrings(slots), err)
	}
	slots, err = svc.AvailableSlots(ctx, "pro-1", monday.AddDays(1))
	if err != nil || len(slots) != 4 {
		t.Fatalf("expected 4 Tuesday slots, got %v %v", slotStrings(slots), err)
	}
}

func TestIsValidTransition(t *testing.T) {
	svc := newTestService(newMemStore())
	if !svc.IsValidTransition(scheduling.StatusPending, scheduling.StatusConfirmed) {
		t.Fatal("PENDING -> CONFIRMED should be valid")
	}
	if svc.IsValidTransition(scheduling.StatusNoShow, scheduling.StatusPending) {
		t.Fatal("NO_SHOW is terminal")
	}
}
