package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// requestValidator validates decoded request bodies and reports field errors
// by their JSON names.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{v: v}
}

// Struct validates s and returns a readable message on failure.
func (rv *requestValidator) Struct(s interface{}) error {
	err := rv.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fieldErrorMessage(fe))
	}
	return errors.New(strings.Join(messages, "; "))
}

func fieldErrorMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

type createProfileRequest struct {
	ID               string   `json:"id" validate:"omitempty,max=64"`
	Username         string   `json:"username" validate:"required,max=50"`
	AvatarURL        string   `json:"avatar_url" validate:"omitempty,url,max=2048"`
	Goal             *string  `json:"goal" validate:"omitempty,max=100"`
	PreferredWorkout *string  `json:"preferred_workout" validate:"omitempty,max=100"`
	Latitude         *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude        *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

type updateProfileRequest struct {
	Username         *string  `json:"username" validate:"omitempty,min=1,max=50"`
	AvatarURL        *string  `json:"avatar_url" validate:"omitempty,max=2048"`
	Goal             *string  `json:"goal" validate:"omitempty,max=100"`
	PreferredWorkout *string  `json:"preferred_workout" validate:"omitempty,max=100"`
	Latitude         *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude        *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	ClearLocation    bool     `json:"clear_location"`
}

type logWorkoutRequest struct {
	Type            string     `json:"type" validate:"required,max=50"`
	DurationMinutes *float64   `json:"duration_minutes" validate:"omitempty,gte=0,lte=1440"`
	CaloriesBurned  *float64   `json:"calories_burned" validate:"omitempty,gte=0,lte=20000"`
	PerformedAt     *time.Time `json:"performed_at"`
}

type sendBuddyRequest struct {
	RequesterID string `json:"requester_id" validate:"required,max=64"`
	AddresseeID string `json:"addressee_id" validate:"required,max=64,nefield=RequesterID"`
}

type respondBuddyRequest struct {
	ResponderID string `json:"responder_id" validate:"required,max=64"`
	Accept      *bool  `json:"accept" validate:"required"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DECODING
// ══════════════════════════════════════════════════════════════════════════════

// decodeAndValidate reads a JSON body into dst and validates it.
// Failures are written as 400/413 and reported as false.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeJSONError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
		case errors.Is(err, io.EOF):
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body is required")
		default:
			writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		}
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "validation_failed", "Request validation failed", err.Error())
		return false
	}
	return true
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(r *http.Request, key string, defaultValue int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return v, nil
}

// queryBool reads an optional boolean query parameter.
func queryBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
