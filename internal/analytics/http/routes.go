package analytichttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-receivables/internal/platform/httpx"
)

// MountRoutes registers receivables endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(h.rateLimit, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "")
		}),
	)

	r.Route("/receivables", func(rr chi.Router) {
		rr.Get("/customers", h.handleCustomers)
		rr.Get("/report", h.handleReport)
		rr.Get("/charts/{chart}.svg", h.handleChartParam)
		rr.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/report.csv", h.handleCSV)
			gr.Get("/report.pdf", h.handlePDF)
			gr.Get("/risk", h.handlePortfolio)
			gr.Post("/dataset/refresh", h.handleRefresh)
		})
	})
}

func (h *Handler) handleChartParam(w http.ResponseWriter, r *http.Request) {
	h.handleChart(chi.URLParam(r, "chart"))(w, r)
}

// rateLimitKey prefers the API key header so that clients behind one proxy
// get separate budgets.
func rateLimitKey(r *http.Request) (string, error) {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return "key:" + key, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
