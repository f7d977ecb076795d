// Package handler exposes the donor service over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/example/bloodlink/internal/donor/domain"
	"github.com/example/bloodlink/internal/donor/matching"
	"github.com/example/bloodlink/internal/donor/service"
	"github.com/example/bloodlink/internal/geo"
)

// HTTP exposes donor registration, search and availability endpoints.
type HTTP struct {
	svc   *service.Service
	holds matching.HoldStore
}

// NewHTTP constructs a handler. holds may be nil; the hold endpoint then
// reports the feature as unavailable.
func NewHTTP(svc *service.Service, holds matching.HoldStore) *HTTP {
	return &HTTP{svc: svc, holds: holds}
}

// Router builds the chi router with all endpoints and middlewares.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Post("/v1/donors", h.registerDonor)
	r.Get("/v1/donors/{id}", h.getDonor)
	r.Patch("/v1/donors/{id}", h.updateDonor)
	r.Post("/v1/donors/{id}/availability", h.setAvailability)
	r.Post("/v1/donors/{id}/hold", h.holdDonor)
	r.Post("/v1/matches", h.match)
	return r
}

type donorPayload struct {
	FullName   string   `json:"full_name"`
	Phone      string   `json:"phone"`
	BloodGroup string   `json:"blood_group"`
	Age        int      `json:"age"`
	City       string   `json:"city"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

type donorResponse struct {
	ID           string   `json:"id"`
	FullName     string   `json:"full_name"`
	Phone        string   `json:"phone"`
	BloodGroup   string   `json:"blood_group"`
	Age          int      `json:"age"`
	City         string   `json:"city"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	RegisteredAt string   `json:"registered_at"`
	Available    bool     `json:"available"`
}

type matchResponse struct {
	Donor      donorResponse `json:"donor"`
	DistanceKm *float64      `json:"distance_km"`
	Rank       int           `json:"rank"`
}

func toDonorResponse(d domain.Donor) donorResponse {
	resp := donorResponse{
		ID:           d.ID.String(),
		FullName:     d.FullName,
		Phone:        d.Phone,
		BloodGroup:   string(d.BloodGroup),
		Age:          d.Age,
		City:         d.City,
		RegisteredAt: d.RegisteredAt.Format(time.RFC3339),
		Available:    d.Available,
	}
	if d.Location != nil {
		lat, lng := d.Location.Lat, d.Location.Lng
		resp.Latitude = &lat
		resp.Longitude = &lng
	}
	return resp
}

func locationFrom(lat, lng *float64) *domain.GeoPoint {
	if lat == nil || lng == nil {
		return nil
	}
	return &domain.GeoPoint{Lat: *lat, Lng: *lng}
}

func (h *HTTP) registerDonor(w http.ResponseWriter, r *http.Request) {
	var payload donorPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	donor, err := h.svc.Register(r.Context(), service.RegisterDonorInput{
		FullName:   payload.FullName,
		Phone:      payload.Phone,
		BloodGroup: payload.BloodGroup,
		Age:        payload.Age,
		City:       payload.City,
		Location:   locationFrom(payload.Latitude, payload.Longitude),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDonorResponse(donor))
}

func (h *HTTP) getDonor(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	donor, err := h.svc.GetDonor(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDonorResponse(donor))
}

func (h *HTTP) updateDonor(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	var payload struct {
		FullName   *string  `json:"full_name"`
		Phone      *string  `json:"phone"`
		BloodGroup *string  `json:"blood_group"`
		Age        *int     `json:"age"`
		City       *string  `json:"city"`
		Latitude   *float64 `json:"latitude"`
		Longitude  *float64 `json:"longitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	patch := domain.DonorPatch{
		FullName: payload.FullName,
		Phone:    payload.Phone,
		Age:      payload.Age,
		City:     payload.City,
		Location: locationFrom(payload.Latitude, payload.Longitude),
	}
	if payload.BloodGroup != nil {
		group := domain.BloodGroup(*payload.BloodGroup)
		patch.BloodGroup = &group
	}

	donor, err := h.svc.UpdateDonor(r.Context(), id, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDonorResponse(donor))
}

func (h *HTTP) setAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	var payload struct {
		Available bool `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	donor, err := h.svc.SetAvailability(r.Context(), id, payload.Available)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDonorResponse(donor))
}

func (h *HTTP) holdDonor(w http.ResponseWriter, r *http.Request) {
	if h.holds == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "holds not configured")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	var payload struct {
		Holder     string `json:"holder"`
		TTLSeconds int    `json:"ttl_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.svc.GetDonor(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	held, err := h.holds.TryHold(r.Context(), id, payload.Holder, time.Duration(payload.TTLSeconds)*time.Second)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if !held {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]bool{"held": held})
}

type matchPayload struct {
	RequiredBloodGroup string   `json:"required_blood_group"`
	RequiredUnits      int      `json:"required_units"`
	HospitalName       string   `json:"hospital_name"`
	ContactName        string   `json:"contact_name"`
	ContactPhone       string   `json:"contact_phone"`
	City               string   `json:"city"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	Limit              int      `json:"limit,omitempty"`
	RadiusKm           float64  `json:"radius_km,omitempty"`
}

func (h *HTTP) match(w http.ResponseWriter, r *http.Request) {
	var payload matchPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	req := domain.BloodRequest{
		RequiredBloodGroup: domain.BloodGroup(payload.RequiredBloodGroup),
		RequiredUnits:      payload.RequiredUnits,
		HospitalName:       payload.HospitalName,
		ContactName:        payload.ContactName,
		ContactPhone:       payload.ContactPhone,
		City:               payload.City,
		Location:           locationFrom(payload.Latitude, payload.Longitude),
	}

	matches, err := h.svc.Match(r.Context(), req, domain.MatchOptions{Limit: payload.Limit, RadiusKm: payload.RadiusKm})
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]matchResponse, len(matches))
	for i, m := range matches {
		out[i] = matchResponse{Donor: toDonorResponse(m.Donor), DistanceKm: m.DistanceKm, Rank: m.Rank}
	}
	writeJSON(w, http.StatusOK, out)
}

func writeError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "validation_failed",
			"violations": verr.Violations,
		})
	case errors.Is(err, domain.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateDonor):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidBloodGroup),
		errors.Is(err, geo.ErrInvalidCoordinate):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	default:
		writeErrorMessage(w, http.StatusInternalServerError, err.Error())
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
