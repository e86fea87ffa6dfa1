package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"teamnet-backend/internal/domain"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	msg := domain.MessageOf(err)
	if kind == domain.KindInternal {
		msg = "internal server error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(kind))
	_ = json.NewEncoder(w).Encode(envelope{Kind: string(kind), Message: msg})
}

func writeStatus(w http.ResponseWriter, status int, kind domain.ErrorKind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Kind: string(kind), Message: msg})
}

// statusFor maps an error kind onto an HTTP status code.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation, domain.KindInvalidDepth:
		return http.StatusBadRequest
	case domain.KindSignatureInvalid:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindCycleDetected, domain.KindAlreadyExists, domain.KindDuplicateOrder,
		domain.KindConflictingPendingIntent, domain.KindIllegalTransition:
		return http.StatusConflict
	case domain.KindGatewayUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON request body into dst. Unknown fields are ignored.
func decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return domain.Wrap(domain.KindValidation, err, "failed to read request body")
	}
	if len(body) == 0 {
		return domain.Errorf(domain.KindValidation, "request body is required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return domain.Errorf(domain.KindValidation, "field %s has the wrong type", typeErr.Field)
		}
		return domain.Wrap(domain.KindValidation, err, "request body is not valid JSON")
	}
	return nil
}
