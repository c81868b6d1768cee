package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/devicekeeper/internal/common"
	"github.com/dmitrijs2005/devicekeeper/internal/server/models"
)

func (h *Handlers) listDevices(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context())
	if err != nil {
		h.storageError(w, r, err)
		return
	}
	h.jsonOK(w, r, http.StatusOK, list)
}

func (h *Handlers) createDevice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.jsonError(w, "invalid form", http.StatusBadRequest)
		return
	}

	d := &models.Device{
		Name:         strings.TrimSpace(r.PostForm.Get("device")),
		OS:           strings.TrimSpace(r.PostForm.Get("os")),
		Manufacturer: strings.TrimSpace(r.PostForm.Get("manufacturer")),
	}
	if d.Name == "" || d.OS == "" || d.Manufacturer == "" {
		h.jsonError(w, "device, os and manufacturer are required", http.StatusBadRequest)
		return
	}

	created, err := h.repo.Create(r.Context(), d)
	if err != nil {
		h.storageError(w, r, err)
		return
	}
	h.jsonOK(w, r, http.StatusCreated, created)
}

func (h *Handlers) updateDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.jsonError(w, "invalid form", http.StatusBadRequest)
		return
	}

	var (
		d   *models.Device
		err error
	)
	switch r.PostForm.Get("isCheckedOut") {
	case "false":
		d, err = h.repo.SetCheckedIn(r.Context(), id)

	case "true":
		by := strings.TrimSpace(r.PostForm.Get("lastCheckedOutBy"))
		if by == "" {
			h.jsonError(w, "lastCheckedOutBy is required", http.StatusBadRequest)
			return
		}
		at, perr := time.Parse(models.DateLayout, r.PostForm.Get("lastCheckedOutDate"))
		if perr != nil {
			h.jsonError(w, "lastCheckedOutDate must look like 2006-01-02T15:04:05-07:00", http.StatusBadRequest)
			return
		}
		d, err = h.repo.SetCheckedOut(r.Context(), id, by, at)

	default:
		h.jsonError(w, "isCheckedOut must be true or false", http.StatusBadRequest)
		return
	}

	if err != nil {
		h.storageError(w, r, err)
		return
	}
	h.jsonOK(w, r, http.StatusOK, d)
}

func (h *Handlers) deleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.storageError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) deviceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.jsonError(w, "invalid device id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handlers) storageError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, common.ErrNotFound) {
		h.jsonError(w, "device not found", http.StatusNotFound)
		return
	}
	h.log.Error(r.Context(), "repository error", "path", r.URL.Path, "error", err)
	h.jsonError(w, "internal error", http.StatusInternalServerError)
}

func (h *Handlers) jsonOK(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn(r.Context(), "write response", "error", err)
	}
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
