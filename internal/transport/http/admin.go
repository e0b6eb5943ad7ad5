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

// SessionScheduler is the minimal interface for the admin session
// endpoints used by the external schedule generator and operators.
type SessionScheduler interface {
	CreateSession(ctx context.Context, in app.CreateSessionInput) (domain.Session, error)
	CloseSession(ctx context.Context, sessionID string) (domain.Session, error)
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	ListSessions(ctx context.Context, organizationID string) ([]domain.Session, error)
}

// HandleAdminSessions serves GET and POST /admin/sessions.
func HandleAdminSessions(svc SessionScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			orgID := r.URL.Query().Get("organization_id")
			if orgID == "" {
				writeError(w, http.StatusBadRequest, codeInvalidID, "organization_id is required")
				return
			}
			sessions, err := svc.ListSessions(r.Context(), orgID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			resp := make([]sessionResponse, 0, len(sessions))
			for _, s := range sessions {
				resp = append(resp, toSessionResponse(s))
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
		case http.MethodPost:
			var req createSessionRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}

			startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidTimeRange, "invalid starts_at format")
				return
			}
			endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidTimeRange, "invalid ends_at format")
				return
			}

			sess, err := svc.CreateSession(r.Context(), app.CreateSessionInput{
				ActivityID:        req.ActivityID,
				VenueID:           req.VenueID,
				OrganizationID:    req.OrganizationID,
				StartsAt:          startsAt,
				EndsAt:            endsAt,
				Capacity:          req.Capacity,
				PriceAtGeneration: req.Price,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(toSessionResponse(sess))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleAdminSession routes GET /admin/sessions/{id} and
// POST /admin/sessions/{id}/close.
func HandleAdminSession(svc SessionScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, action, ok := parseAdminSessionPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch {
		case action == "" && r.Method == http.MethodGet:
			sess, err := svc.GetSession(r.Context(), id)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(toSessionResponse(sess))
		case action == "close" && r.Method == http.MethodPost:
			sess, err := svc.CloseSession(r.Context(), id)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(toSessionResponse(sess))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

func parseAdminSessionPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || len(parts) > 4 || parts[0] != "admin" || parts[1] != "sessions" || parts[2] == "" {
		return "", "", false
	}
	if len(parts) == 4 {
		if parts[3] != "close" {
			return "", "", false
		}
		return parts[2], parts[3], true
	}
	return parts[2], "", true
}

type createSessionRequest struct {
	ActivityID     string  `json:"activity_id"`
	VenueID        string  `json:"venue_id"`
	OrganizationID string  `json:"organization_id"`
	StartsAt       string  `json:"starts_at"`
	EndsAt         string  `json:"ends_at"`
	Capacity       int     `json:"capacity"`
	Price          float64 `json:"price,omitempty"`
}

type sessionResponse struct {
	ID                string    `json:"id"`
	ActivityID        string    `json:"activity_id"`
	VenueID           string    `json:"venue_id"`
	OrganizationID    string    `json:"organization_id"`
	StartsAt          time.Time `json:"starts_at"`
	EndsAt            time.Time `json:"ends_at"`
	CapacityTotal     int       `json:"capacity_total"`
	CapacityRemaining int       `json:"capacity_remaining"`
	Price             float64   `json:"price"`
	IsClosed          bool      `json:"is_closed"`
	Version           int64     `json:"version"`
}

func toSessionResponse(s domain.Session) sessionResponse {
	return sessionResponse{
		ID:                s.ID,
		ActivityID:        s.ActivityID,
		VenueID:           s.VenueID,
		OrganizationID:    s.OrganizationID,
		StartsAt:          s.StartsAt,
		EndsAt:            s.EndsAt,
		CapacityTotal:     s.CapacityTotal,
		CapacityRemaining: s.CapacityRemaining,
		Price:             s.PriceAtGeneration,
		IsClosed:          s.IsClosed,
		Version:           s.Version,
	}
}
