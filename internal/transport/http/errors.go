package http

import (
	"encoding/json"
	"net/http"

	"github.com/marketingadvisorai/bookingtms-core/internal/domain"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeInvalidID            = "invalid_id"
	codeInvalidSpots         = "invalid_spots"
	codeInvalidCapacity      = "invalid_capacity"
	codeInvalidTimeRange     = "invalid_time_range"
	codeInvalidTTL           = "invalid_ttl"
	codeMissingReference     = "missing_reference"
	codeSessionNotFound      = "session_not_found"
	codeReservationNotFound  = "reservation_not_found"
	codeSessionClosed        = "session_closed"
	codeInsufficientCapacity = "insufficient_capacity"
	codeContention           = "contention"
	codeAlreadyFinalized     = "already_finalized"
	codeReservationExpired   = "reservation_expired"
	codeDuplicateCheckoutRef = "duplicate_checkout_ref"
	codeForbidden            = "forbidden"
	codeTooManyRequests      = "too_many_requests"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps service sentinels to stable status/code pairs.
// An expired hold gets its own code so the UI can say "slot no longer
// held, please re-select" instead of a generic payment error.
func writeDomainError(w http.ResponseWriter, err error) {
	switch err {
	case domain.ErrInvalidID:
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case domain.ErrInvalidSpots:
		writeError(w, http.StatusBadRequest, codeInvalidSpots, err.Error())
	case domain.ErrInvalidCapacity:
		writeError(w, http.StatusBadRequest, codeInvalidCapacity, err.Error())
	case domain.ErrInvalidTimeRange:
		writeError(w, http.StatusBadRequest, codeInvalidTimeRange, err.Error())
	case domain.ErrInvalidTTL:
		writeError(w, http.StatusBadRequest, codeInvalidTTL, err.Error())
	case domain.ErrMissingReference:
		writeError(w, http.StatusBadRequest, codeMissingReference, err.Error())
	case domain.ErrSessionNotFound:
		writeError(w, http.StatusNotFound, codeSessionNotFound, err.Error())
	case domain.ErrReservationNotFound:
		writeError(w, http.StatusNotFound, codeReservationNotFound, err.Error())
	case domain.ErrSessionClosed:
		writeError(w, http.StatusConflict, codeSessionClosed, err.Error())
	case domain.ErrInsufficientCapacity:
		writeError(w, http.StatusConflict, codeInsufficientCapacity, "sold out")
	case domain.ErrContention:
		writeError(w, http.StatusConflict, codeContention, "high demand, try again")
	case domain.ErrAlreadyFinalized:
		writeError(w, http.StatusConflict, codeAlreadyFinalized, err.Error())
	case domain.ErrReservationExpired:
		writeError(w, http.StatusConflict, codeReservationExpired, "slot no longer held, please re-select")
	case domain.ErrDuplicateCheckoutRef:
		writeError(w, http.StatusConflict, codeDuplicateCheckoutRef, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
