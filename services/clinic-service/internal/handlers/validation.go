package handlers

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/scheduling"
)

var (
	dniPattern     = regexp.MustCompile(`^\d{7,8}$`)
	phoneARPattern = regexp.MustCompile(`^(\+54\s?)?(\(?0?\d{2,4}\)?[\s\-]?)?\d{6,8}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("dni", validateDNI)
	_ = v.RegisterValidation("phone_ar", validatePhoneAR)
	_ = v.RegisterValidation("hhmm", validateHHMM)
	return v
}

func validateDNI(fl validator.FieldLevel) bool {
	return dniPattern.MatchString(fl.Field().String())
}

func validatePhoneAR(fl validator.FieldLevel) bool {
	return phoneARPattern.MatchString(fl.Field().String())
}

func validateHHMM(fl validator.FieldLevel) bool {
	_, err := scheduling.ParseTimeOfDay(fl.Field().String())
	return err == nil
}

var tagMessages = map[string]string{
	"required": "is required",
	"uuid":     "must be a UUID",
	"email":    "must be a valid email address",
	"dni":      "must have 7 or 8 digits",
	"phone_ar": "must be a valid phone number",
	"hhmm":     "must be a time of day as HH:MM",
	"datetime": "must be a date as YYYY-MM-DD",
	"oneof":    "must be one of: %s",
	"min":      "must be at least %s",
	"max":      "must be at most %s",
}

// validationMessage renders every failed field as "field message", joined by ", ".
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		if strings.Contains(msg, "%s") {
			msg = strings.Replace(msg, "%s", strings.Join(strings.Fields(fe.Param()), ", "), 1)
		}
		parts = append(parts, fieldPath(fe.Namespace())+" "+msg)
	}
	return strings.Join(parts, ", ")
}

// fieldPath drops the struct name from a namespace like "bookRequest.patient_id".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
