package ledgerhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

const rebuildRateLimit = 5
const rebuildRateWindow = time.Minute

// MountRoutes registers the finance reporting endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rebuildRateLimit, rebuildRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	r.Get("/finance/monthly-balances", h.handleMonthlyBalances)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Post("/finance/rebuild", h.handleRebuild)
	})
}
