package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/v1/reports/{requestId}", func(r chi.Router) {
		r.Get("/gate", func(w http.ResponseWriter, r *http.Request) {
			h.GetGate(w, r, chi.URLParam(r, "requestId"))
		})
		r.Get("/availability", func(w http.ResponseWriter, r *http.Request) {
			h.GetAvailability(w, r, chi.URLParam(r, "requestId"))
		})
		r.Post("/download", func(w http.ResponseWriter, r *http.Request) {
			h.DownloadReport(w, r, chi.URLParam(r, "requestId"))
		})
		r.Post("/deliveries", func(w http.ResponseWriter, r *http.Request) {
			h.StartDelivery(w, r, chi.URLParam(r, "requestId"))
		})
		r.Post("/deliveries/context", func(w http.ResponseWriter, r *http.Request) {
			h.SignalDeliveryContext(w, r, chi.URLParam(r, "requestId"))
		})
	})

	if h.blobs != nil {
		r.Mount("/blobs", NewBlobRouter(h.blobs))
	}

	return r
}

// NewBlobRouter serves live in-memory report blobs. Revoked blobs answer 404.
func NewBlobRouter(store BlobSource) http.Handler {
	r := chi.NewRouter()
	r.Get("/{blobId}", func(w http.ResponseWriter, r *http.Request) {
		serveBlob(w, store, chi.URLParam(r, "blobId"))
	})
	return r
}
