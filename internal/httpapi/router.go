package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fadedpez/ebucks/internal/logging"
	"github.com/fadedpez/ebucks/pkg/ebucks"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Version is reported by the health endpoint
const Version = "v0.1.0"

// NewRouter returns a chi router serving the eBucks API and a health endpoint
func NewRouter(registry *ebucks.Registry, logger *logging.Logger) *chi.Mux {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("httpapi")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "ebucks", "version": Version})
	})

	RegisterRoutes(r, registry, logger)
	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
