package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicdesk/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clinicdesk/libs/otel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestNewEventAssignsIDAndPayload(t *testing.T) {
	at := time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)
	evt, err := NewEvent(AggregateAppointment, "appt-1", TypeAppointmentBooked, AppointmentPayload{
		AppointmentID: "appt-1", ProfessionalID: "pro-1", PatientID: "pat-1", ScheduledAt: at, Status: "PENDING",
	})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if evt.ID == "" {
		t.Fatal("expected event id")
	}
	var decoded map[string]any
	if err := json.Unmarshal(evt.Payload, &decoded); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if decoded["scheduled_at"] != "2025-03-10T13:00:00Z" {
		t.Fatalf("unexpected scheduled_at %v", decoded["scheduled_at"])
	}
	if _, ok := decoded["previous_scheduled_at"]; ok {
		t.Fatal("zero previous time should be omitted")
	}
}

func TestMessageCarriesMetaAndTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	rec := Record{
		Seq: 7,
		Event: Event{
			ID: "evt-1", AggregateType: AggregateAppointment, AggregateID: "appt-1",
			EventType: TypeAppointmentBooked, Payload: []byte(`{}`),
		},
		Trace: otelx.TraceCarrier{Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
	}
	msg := Message(context.Background(), rec)
	if msg.Topic != TypeAppointmentBooked || string(msg.Key) != "appt-1" {
		t.Fatalf("unexpected routing %s/%s", msg.Topic, msg.Key)
	}
	meta := kafkax.MetaOf(msg)
	if meta.EventID != "evt-1" || meta.EventType != TypeAppointmentBooked {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if got := kafkax.HeaderValue(msg.Headers, "traceparent"); got != rec.Trace.Traceparent {
		t.Fatalf("expected stored traceparent to be forwarded, got %q", got)
	}
}
