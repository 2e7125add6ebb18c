package http

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/elsoug/orders/internal/domain"
)

// writeJSON сериализует payload и пишет ответ с заданным статусом.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).Error("failed to encode response")
	}
}

// writeRawJSON пишет уже сериализованное тело (replay идемпотентных ответов).
func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

// writeError пишет ошибку в едином формате {error, message}.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// mapDomainError транслирует ошибку предметной области в HTTP-статус и тело.
func mapDomainError(err error) (int, errorResponse) {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound, errorResponse{Error: "not_found", Message: err.Error()}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: "forbidden", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusBadRequest, errorResponse{Error: "invalid_transition", Message: err.Error()}
	case errors.Is(err, domain.ErrListingUnavailable):
		return http.StatusConflict, errorResponse{Error: "listing_unavailable", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidOperation),
		errors.Is(err, domain.ErrBuyerRequired),
		errors.Is(err, domain.ErrItemsRequired),
		errors.Is(err, domain.ErrItemQtyInvalid):
		return http.StatusBadRequest, errorResponse{Error: "invalid_operation", Message: err.Error()}
	case domain.IsVersionConflict(err):
		return http.StatusConflict, errorResponse{Error: "version_conflict", Message: err.Error()}
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusConflict, errorResponse{Error: "idempotency_mismatch", Message: err.Error()}
	default:
		log.WithError(err).Error("unhandled error in http handler")
		return http.StatusInternalServerError, errorResponse{Error: "internal", Message: "internal server error"}
	}
}

// writeDomainError пишет ошибку предметной области в ответ.
func writeDomainError(w http.ResponseWriter, err error) {
	status, resp := mapDomainError(err)
	writeJSON(w, status, resp)
}
