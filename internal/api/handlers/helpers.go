package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/TWRT/tasks-api/internal/api/middleware"
	"github.com/TWRT/tasks-api/internal/schema"
	"github.com/TWRT/tasks-api/internal/service"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeServiceError maps a service error onto its status code. Anything
// that is neither a validation nor a not-found error is a server fault.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *log.Logger, err error) {
	var notFound *service.NotFoundError
	var invalid *service.ValidationError

	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Error())
	default:
		logger.Error("request failed",
			"rid", middleware.RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &service.ValidationError{Detail: "Error trying to read the body: " + err.Error()}
	}
	if len(body) > maxBodyBytes {
		return nil, &service.ValidationError{Detail: "Payload too large"}
	}
	return body, nil
}

func parseJSON(body []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &service.ValidationError{Detail: "JSON error: " + err.Error()}
	}
	return doc, nil
}

// decodeValidated checks doc against the schema of kind and then decodes it into dst.
func decodeValidated(validator *schema.Validator, kind schema.Kind, doc any, dst any) error {
	if err := validator.Validate(kind, doc); err != nil {
		var schemaErr *schema.Error
		if errors.As(err, &schemaErr) {
			return &service.ValidationError{Detail: schemaErr.Error()}
		}
		return err
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return &service.ValidationError{Detail: "JSON error: " + err.Error()}
	}
	return nil
}

func decodeBody(r *http.Request, validator *schema.Validator, kind schema.Kind, dst any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	doc, err := parseJSON(body)
	if err != nil {
		return err
	}
	return decodeValidated(validator, kind, doc, dst)
}
