package handlers

import (
	"log"
	"net/http"
	"time"
)

// RouteOptions toggles optional endpoints.
type RouteOptions struct {
	EnableTestRoutes bool
}

// Routes builds the mux with CORS and request logging around every route.
func (h *Handler) Routes(opts RouteOptions) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.root)
	mux.HandleFunc("POST /api/checkout", h.create)
	mux.HandleFunc("GET /api/checkout-status", h.status)
	mux.HandleFunc("GET /api/commands", h.commands)
	mux.HandleFunc("POST /api/confirm-sale", h.confirm)
	mux.HandleFunc("GET /api/sales", h.sales)
	mux.HandleFunc("GET /api/machines", h.machines)
	if opts.EnableTestRoutes {
		mux.HandleFunc("POST /api/test-approve", h.approve)
	}

	return logRequests(corsMiddleware(mux))
}

// setCORSHeaders adds CORS headers to a response.
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// corsMiddleware answers pre-flight requests itself so they never reach the
// method-restricted mux patterns.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
