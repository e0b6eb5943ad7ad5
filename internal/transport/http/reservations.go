package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/marketingadvisorai/bookingtms-core/internal/app"
	"github.com/marketingadvisorai/bookingtms-core/internal/domain"
)

// ReservationCreator is the minimal interface needed by the checkout
// initiation endpoint.
type ReservationCreator interface {
	CreateReservation(ctx context.Context, in app.CreateReservationInput) (domain.Reservation, error)
}

// ReservationAccessor covers the per-reservation endpoints: countdown
// lookup and cancellation.
type ReservationAccessor interface {
	GetReservation(ctx context.Context, reservationID string) (domain.Reservation, error)
	CancelReservation(ctx context.Context, reservationID string) (domain.Reservation, error)
}

// HandleCreateReservation returns the handler for POST /reservations.
func HandleCreateReservation(svc ReservationCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createReservationRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := req.validate(); err != nil {
			writeDomainError(w, err)
			return
		}

		res, err := svc.CreateReservation(r.Context(), app.CreateReservationInput{
			SessionID:         req.SessionID,
			OrganizationID:    req.OrganizationID,
			Spots:             req.Spots,
			CustomerEmail:     req.CustomerEmail,
			CheckoutSessionID: req.CheckoutSessionID,
			TTL:               time.Duration(req.TTLMinutes) * time.Minute,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(toReservationResponse(res))
	}
}

// HandleReservation routes GET /reservations/{id} and
// POST /reservations/{id}/cancel.
func HandleReservation(svc ReservationAccessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, action, ok := parseReservationPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch {
		case action == "" && r.Method == http.MethodGet:
			res, err := svc.GetReservation(r.Context(), id)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(toReservationResponse(res))
		case action == "cancel" && r.Method == http.MethodPost:
			res, err := svc.CancelReservation(r.Context(), id)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(toReservationResponse(res))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

func parseReservationPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "reservations" || parts[1] == "" {
		return "", "", false
	}
	if len(parts) == 3 {
		if parts[2] != "cancel" {
			return "", "", false
		}
		return parts[1], parts[2], true
	}
	return parts[1], "", true
}

type createReservationRequest struct {
	SessionID         string `json:"session_id"`
	OrganizationID    string `json:"organization_id"`
	Spots             int    `json:"spots"`
	CustomerEmail     string `json:"customer_email,omitempty"`
	CheckoutSessionID string `json:"checkout_session_id,omitempty"`
	TTLMinutes        int    `json:"ttl_minutes,omitempty"`
}

func (r createReservationRequest) validate() error {
	if r.SessionID == "" || r.OrganizationID == "" {
		return domain.ErrInvalidID
	}
	if r.Spots <= 0 {
		return domain.ErrInvalidSpots
	}
	if r.TTLMinutes < 0 {
		return domain.ErrInvalidTTL
	}
	return nil
}

type reservationResponse struct {
	ID                string     `json:"id"`
	SessionID         string     `json:"session_id"`
	OrganizationID    string     `json:"organization_id"`
	Spots             int        `json:"spots"`
	Status            string     `json:"status"`
	SessionVersion    int64      `json:"session_version"`
	CheckoutSessionID string     `json:"checkout_session_id,omitempty"`
	ExpiresAt         time.Time  `json:"expires_at"`
	CreatedAt         time.Time  `json:"created_at"`
	ConvertedAt       *time.Time `json:"converted_at,omitempty"`
	BookingID         string     `json:"booking_id,omitempty"`
}

func toReservationResponse(res domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:                res.ID,
		SessionID:         res.SessionID,
		OrganizationID:    res.OrganizationID,
		Spots:             res.SpotsReserved,
		Status:            string(res.Status),
		SessionVersion:    res.SessionVersionAtReserve,
		CheckoutSessionID: res.CheckoutSessionID,
		ExpiresAt:         res.ExpiresAt,
		CreatedAt:         res.CreatedAt,
		ConvertedAt:       res.ConvertedAt,
		BookingID:         res.BookingID,
	}
}
