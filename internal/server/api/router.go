// Package api serves the device catalog over HTTP: JSON responses,
// form-encoded request bodies.
//
//	GET    /devices        list
//	POST   /devices        create (device, os, manufacturer)
//	POST   /devices/{id}   check in (isCheckedOut=false) or check out
//	                       (isCheckedOut=true, lastCheckedOutBy, lastCheckedOutDate)
//	DELETE /devices/{id}   delete
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/devicekeeper/internal/logging"
	"github.com/dmitrijs2005/devicekeeper/internal/server/repositories/devices"
)

type Handlers struct {
	repo devices.Repository
	log  logging.Logger
}

func NewHandlers(repo devices.Repository, log logging.Logger) *Handlers {
	if log == nil {
		log = logging.Nop()
	}
	return &Handlers{repo: repo, log: log.With("module", "api")}
}

// Router wires the handlers with request id, access logging and panic
// recovery.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)

	r.Route("/devices", func(r chi.Router) {
		r.Get("/", h.listDevices)
		r.Post("/", h.createDevice)
		r.Post("/{id}", h.updateDevice)
		r.Delete("/{id}", h.deleteDevice)
	})
	return r
}

func (h *Handlers) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Info(r.Context(), "request",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"duration", time.Since(start), "request_id", middleware.GetReqID(r.Context()))
	})
}
