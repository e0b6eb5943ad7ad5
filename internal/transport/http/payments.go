package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/marketingadvisorai/bookingtms-core/internal/app"
	"github.com/marketingadvisorai/bookingtms-core/internal/domain"
)

// Binder finalizes a paid reservation into a booking.
type Binder interface {
	Bind(ctx context.Context, in app.BindInput) (app.BindResult, error)
}

// ReservationCanceller releases a hold when payment fails or the
// customer abandons checkout.
type ReservationCanceller interface {
	CancelReservation(ctx context.Context, reservationID string) (domain.Reservation, error)
	CancelByCheckoutRef(ctx context.Context, checkoutSessionID string) (domain.Reservation, error)
}

const (
	paymentStatusSucceeded = "succeeded"
	paymentStatusCancelled = "cancelled"
	paymentStatusFailed    = "failed"
)

// HandlePaymentEvents returns the webhook handler the payment provider
// calls. Delivery may be duplicated or racy: a replayed success
// returns the stored booking with 200 and writes nothing, and a cancel
// that lost to a convert reports already_finalized for the caller to
// reconcile.
func HandlePaymentEvents(binder Binder, canceller ReservationCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req paymentEventRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.ReservationID == "" && req.CheckoutSessionID == "" {
			writeDomainError(w, domain.ErrMissingReference)
			return
		}

		switch req.Status {
		case paymentStatusSucceeded:
			result, err := binder.Bind(r.Context(), app.BindInput{
				ReservationID:     req.ReservationID,
				CheckoutSessionID: req.CheckoutSessionID,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}

			resp := paymentBindResponse{
				BookingID:     result.Booking.ID,
				ReservationID: result.Booking.ReservationID,
				SessionID:     result.Booking.SessionID,
				Spots:         result.Booking.Spots,
				Converted:     result.Created,
				CreatedAt:     result.Booking.CreatedAt,
			}
			w.Header().Set("Content-Type", "application/json")
			if result.Created {
				w.WriteHeader(http.StatusCreated)
			} else {
				w.WriteHeader(http.StatusOK)
			}
			_ = json.NewEncoder(w).Encode(resp)
		case paymentStatusCancelled, paymentStatusFailed:
			var (
				res domain.Reservation
				err error
			)
			if req.ReservationID != "" {
				res, err = canceller.CancelReservation(r.Context(), req.ReservationID)
			} else {
				res, err = canceller.CancelByCheckoutRef(r.Context(), req.CheckoutSessionID)
			}
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(toReservationResponse(res))
		default:
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "unknown payment status")
		}
	}
}

type paymentEventRequest struct {
	ReservationID     string `json:"reservation_id,omitempty"`
	CheckoutSessionID string `json:"checkout_session_id,omitempty"`
	Status            string `json:"status"`
}

type paymentBindResponse struct {
	BookingID     string    `json:"booking_id"`
	ReservationID string    `json:"reservation_id"`
	SessionID     string    `json:"session_id"`
	Spots         int       `json:"spots"`
	Converted     bool      `json:"converted"`
	CreatedAt     time.Time `json:"created_at"`
}
