package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marketingadvisorai/bookingtms-core/internal/app"
	"github.com/marketingadvisorai/bookingtms-core/internal/domain"
)

type stubReservationService struct {
	createFn    func(ctx context.Context, in app.CreateReservationInput) (domain.Reservation, error)
	getFn       func(ctx context.Context, id string) (domain.Reservation, error)
	cancelFn    func(ctx context.Context, id string) (domain.Reservation, error)
	cancelRefFn func(ctx context.Context, ref string) (domain.Reservation, error)
}

func (s *stubReservationService) CreateReservation(ctx context.Context, in app.CreateReservationInput) (domain.Reservation, error) {
	return s.createFn(ctx, in)
}

func (s *stubReservationService) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	return s.getFn(ctx, id)
}

func (s *stubReservationService) CancelReservation(ctx context.Context, id string) (domain.Reservation, error) {
	return s.cancelFn(ctx, id)
}

func (s *stubReservationService) CancelByCheckoutRef(ctx context.Context, ref string) (domain.Reservation, error) {
	return s.cancelRefFn(ctx, ref)
}

func sampleReservation() domain.Reservation {
	return domain.Reservation{
		ID:                      "res-1",
		SessionID:               "sess-1",
		OrganizationID:          "org-1",
		SpotsReserved:           2,
		SessionVersionAtReserve: 3,
		Status:                  domain.ReservationStatusPending,
		ExpiresAt:               time.Date(2026, 3, 14, 10, 15, 0, 0, time.UTC),
		CreatedAt:               time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestHandleCreateReservation(t *testing.T) {
	t.Parallel()

	t.Run("creates reservation", func(t *testing.T) {
		var gotInput app.CreateReservationInput
		svc := &stubReservationService{
			createFn: func(_ context.Context, in app.CreateReservationInput) (domain.Reservation, error) {
				gotInput = in
				return sampleReservation(), nil
			},
		}

		body := `{"session_id":"sess-1","organization_id":"org-1","spots":2,"ttl_minutes":20}`
		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(body))
		rec := httptest.NewRecorder()
		HandleCreateReservation(svc)(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotInput.TTL != 20*time.Minute {
			t.Fatalf("expected ttl 20m, got %v", gotInput.TTL)
		}

		var resp reservationResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.ID != "res-1" || resp.Status != "pending" || resp.SessionVersion != 3 {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("maps business rejections", func(t *testing.T) {
		cases := []struct {
			name       string
			err        error
			wantStatus int
			wantCode   string
		}{
			{"sold out", domain.ErrInsufficientCapacity, http.StatusConflict, codeInsufficientCapacity},
			{"contention", domain.ErrContention, http.StatusConflict, codeContention},
			{"closed", domain.ErrSessionClosed, http.StatusConflict, codeSessionClosed},
			{"missing session", domain.ErrSessionNotFound, http.StatusNotFound, codeSessionNotFound},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				svc := &stubReservationService{
					createFn: func(context.Context, app.CreateReservationInput) (domain.Reservation, error) {
						return domain.Reservation{}, tc.err
					},
				}
				body := `{"session_id":"sess-1","organization_id":"org-1","spots":2}`
				req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(body))
				rec := httptest.NewRecorder()
				HandleCreateReservation(svc)(rec, req)

				if rec.Code != tc.wantStatus {
					t.Fatalf("expected %d, got %d", tc.wantStatus, rec.Code)
				}
				var resp errorResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode error: %v", err)
				}
				if resp.Code != tc.wantCode {
					t.Fatalf("expected code %s, got %s", tc.wantCode, resp.Code)
				}
			})
		}
	})

	t.Run("rejects bad input before the service", func(t *testing.T) {
		svc := &stubReservationService{
			createFn: func(context.Context, app.CreateReservationInput) (domain.Reservation, error) {
				t.Fatalf("service must not be called")
				return domain.Reservation{}, nil
			},
		}

		for _, body := range []string{
			`{"organization_id":"org-1","spots":2}`,
			`{"session_id":"sess-1","organization_id":"org-1","spots":0}`,
			`{"session_id":"sess-1","unknown_field":1}`,
			`not json`,
		} {
			req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(body))
			rec := httptest.NewRecorder()
			HandleCreateReservation(svc)(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
			}
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		svc := &stubReservationService{}
		req := httptest.NewRequest(http.MethodGet, "/reservations", nil)
		rec := httptest.NewRecorder()
		HandleCreateReservation(svc)(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})
}

func TestHandleReservation(t *testing.T) {
	t.Parallel()

	t.Run("get returns reservation", func(t *testing.T) {
		svc := &stubReservationService{
			getFn: func(_ context.Context, id string) (domain.Reservation, error) {
				if id != "res-1" {
					t.Fatalf("expected res-1, got %s", id)
				}
				return sampleReservation(), nil
			},
		}
		req := httptest.NewRequest(http.MethodGet, "/reservations/res-1", nil)
		rec := httptest.NewRecorder()
		HandleReservation(svc)(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("cancel returns the cancelled reservation", func(t *testing.T) {
		svc := &stubReservationService{
			cancelFn: func(_ context.Context, id string) (domain.Reservation, error) {
				res := sampleReservation()
				res.Status = domain.ReservationStatusCancelled
				return res, nil
			},
		}
		req := httptest.NewRequest(http.MethodPost, "/reservations/res-1/cancel", nil)
		rec := httptest.NewRecorder()
		HandleReservation(svc)(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp reservationResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Status != "cancelled" {
			t.Fatalf("expected cancelled, got %s", resp.Status)
		}
	})

	t.Run("cancel on finalized reservation conflicts", func(t *testing.T) {
		svc := &stubReservationService{
			cancelFn: func(context.Context, string) (domain.Reservation, error) {
				return domain.Reservation{}, domain.ErrAlreadyFinalized
			},
		}
		req := httptest.NewRequest(http.MethodPost, "/reservations/res-1/cancel", nil)
		rec := httptest.NewRecorder()
		HandleReservation(svc)(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("unknown paths and methods", func(t *testing.T) {
		svc := &stubReservationService{}

		req := httptest.NewRequest(http.MethodPost, "/reservations/res-1/boost", nil)
		rec := httptest.NewRecorder()
		HandleReservation(svc)(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}

		req = httptest.NewRequest(http.MethodDelete, "/reservations/res-1", nil)
		rec = httptest.NewRecorder()
		HandleReservation(svc)(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})
}
