package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicdesk/libs/httpx"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/booking"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/model"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/scheduling"
)

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// It writes the 400/422 response itself and reports whether to continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "validation_failed", validationMessage(err))
		return false
	}
	return true
}

// pathID returns the {id} path value when it is a UUID.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if _, err := uuid.Parse(id); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_id", "id must be a UUID")
		return "", false
	}
	return id, true
}

func optionalUUID(w http.ResponseWriter, name, value string) bool {
	if value == "" {
		return true
	}
	if _, err := uuid.Parse(value); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a UUID")
		return false
	}
	return true
}

func actorOf(r *http.Request) booking.Actor {
	p, _ := httpx.PrincipalFromContext(r.Context())
	if p.Role != httpx.RoleProfessional {
		return booking.Actor{}
	}
	return booking.Actor{ProfessionalID: p.ProfessionalID, Restricted: true}
}

// writeError maps service errors onto HTTP responses. Unexpected errors are
// logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, model.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "not allowed for this principal")
	case errors.Is(err, model.ErrDuplicate):
		httpx.WriteError(w, http.StatusConflict, "duplicate", err.Error())
	case errors.Is(err, model.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, model.ErrInvalid), errors.Is(err, scheduling.ErrInvalidRule):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	default:
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// verdictStatus is the HTTP status of a rejected write.
func verdictStatus(reason scheduling.Reason) int {
	switch reason {
	case scheduling.ReasonSlotAlreadyBooked, scheduling.ReasonStorageConflict, scheduling.ReasonInvalidStateTransition:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeRejection(w http.ResponseWriter, v scheduling.Verdict) {
	httpx.WriteError(w, verdictStatus(v.Reason), string(v.Reason), v.Reason.Message())
}

type verdictResponse struct {
	Accepted bool              `json:"accepted"`
	Reason   scheduling.Reason `json:"reason,omitempty"`
	Message  string            `json:"message,omitempty"`
}

func newVerdictResponse(v scheduling.Verdict) verdictResponse {
	out := verdictResponse{Accepted: v.Accepted, Reason: v.Reason}
	if !v.Accepted {
		out.Message = v.Reason.Message()
	}
	return out
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items}
}
