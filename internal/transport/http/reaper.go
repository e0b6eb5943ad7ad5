package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/marketingadvisorai/bookingtms-core/internal/app"
)

// Sweeper runs one expiry sweep; an external cron hits this endpoint
// on its own interval.
type Sweeper interface {
	Sweep(ctx context.Context) (app.SweepResult, error)
}

// HandleExpirySweep returns the handler for POST /internal/expiry/sweep.
func HandleExpirySweep(svc Sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		result, err := svc.Sweep(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sweepResponse{
			Cleaned:          result.Cleaned,
			CapacityReleased: result.CapacityReleased,
		})
	}
}

type sweepResponse struct {
	Cleaned          int `json:"cleaned_count"`
	CapacityReleased int `json:"capacity_released"`
}
