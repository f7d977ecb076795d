package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/example/bloodlink/internal/donor/domain"
	travelsvc "github.com/example/bloodlink/internal/travel/service"
)

// HTTP exposes the /v1/travel endpoint.
type HTTP struct {
	svc *travelsvc.Service
}

// New creates the handler.
func New(svc *travelsvc.Service) *HTTP {
	return &HTTP{svc: svc}
}

// Router builds the chi router.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/travel", h.estimate)
	return r
}

func (h *HTTP) estimate(w http.ResponseWriter, r *http.Request) {
	hospital := domain.GeoPoint{
		Lat: parseQueryFloat(r, "hospital_lat"),
		Lng: parseQueryFloat(r, "hospital_lng"),
	}

	resp := map[string]any{}
	if raw := r.URL.Query().Get("donor_id"); raw != "" {
		donorID, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid donor_id"})
			return
		}
		duration, ok := h.svc.EstimateDonorTravel(r.Context(), donorID, hospital)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no location known for donor"})
			return
		}
		resp["donor_id"] = donorID.String()
		resp["travel_sec"] = duration.Seconds()
		writeJSON(w, http.StatusOK, resp)
		return
	}

	duration, donorID := h.svc.EstimateNearestDonor(r.Context(), hospital)
	resp["travel_sec"] = duration.Seconds()
	if donorID != nil {
		resp["donor_id"] = donorID.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseQueryFloat(r *http.Request, key string) float64 {
	v, _ := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
