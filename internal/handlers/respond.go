package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rolliki/backend/internal/attachments"
	"github.com/rolliki/backend/internal/logging"
	"github.com/rolliki/backend/internal/models"
	"github.com/rolliki/backend/internal/repositories"
	"github.com/rolliki/backend/internal/stages"
	"github.com/rolliki/backend/internal/storage"
)

const maxJSONBody = 1 << 20

var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New(validator.WithRequiredStructEnabled())
	requestValidate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	_ = requestValidate.RegisterValidation("role", validateRole)
}

func validateRole(fl validator.FieldLevel) bool {
	_, err := models.ParseRole(fl.Field().String())
	return err == nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type apiError struct {
	status int
	code   string
}

// errorKinds is checked in order; the first match wins.
var errorKinds = []struct {
	target error
	apiError
}{
	{stages.ErrInvalidInput, apiError{http.StatusBadRequest, "invalid_input"}},
	{models.ErrUnknownRole, apiError{http.StatusBadRequest, "invalid_role"}},
	{attachments.ErrNoFiles, apiError{http.StatusBadRequest, "no_files"}},
	{stages.ErrForbidden, apiError{http.StatusForbidden, "forbidden"}},
	{stages.ErrNotFound, apiError{http.StatusNotFound, "not_found"}},
	{storage.ErrObjectNotFound, apiError{http.StatusNotFound, "object_not_found"}},
	{stages.ErrAlreadyCompleted, apiError{http.StatusConflict, "already_completed"}},
	{stages.ErrNotAvailable, apiError{http.StatusConflict, "not_available"}},
	{stages.ErrHasDependents, apiError{http.StatusConflict, "has_dependents"}},
	{repositories.ErrConflict, apiError{http.StatusConflict, "conflict"}},
	{stages.ErrInvalidReference, apiError{http.StatusUnprocessableEntity, "invalid_reference"}},
	{attachments.ErrStorageUnavailable, apiError{http.StatusServiceUnavailable, "storage_unavailable"}},
}

func classify(err error) apiError {
	for _, kind := range errorKinds {
		if errors.Is(err, kind.target) {
			return kind.apiError
		}
	}
	return apiError{http.StatusInternalServerError, "internal"}
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// respondError maps err onto a status and error code. Internal errors are
// logged in full and reported with a generic message.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := classify(err)
	message := err.Error()
	if kind.status == http.StatusInternalServerError {
		logging.FromContext(ctx).Error("unhandled error", "error", err)
		message = "internal server error"
	}
	respondJSON(ctx, w, kind.status, errorResponse{Error: message, Code: kind.code})
}

func respondBadRequest(ctx context.Context, w http.ResponseWriter, message string) {
	respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: message, Code: "invalid_input"})
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := requestValidate.Struct(dst); err != nil {
		return describeValidation(err)
	}
	return nil
}

func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "role":
			parts = append(parts, fmt.Sprintf("%s must be one of %s", fe.Field(), roleList()))
		case "datetime":
			parts = append(parts, fmt.Sprintf("%s must be a date in YYYY-MM-DD format", fe.Field()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(parts, "; "))
}

func roleList() string {
	roles := models.Roles()
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return strings.Join(names, ", ")
}

