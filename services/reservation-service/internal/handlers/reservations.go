package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/carebook/carebook/services/reservation-service/internal/events"
	"github.com/carebook/carebook/services/reservation-service/internal/model"
	"github.com/carebook/carebook/services/reservation-service/internal/reservation"
)

type ReservationHandler struct {
	engine *reservation.Engine
	events events.Publisher
	logger *slog.Logger
}

func NewReservationHandler(engine *reservation.Engine, publisher events.Publisher, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{engine: engine, events: publisher, logger: logger}
}

type createAvailabilityRequest struct {
	ProviderID string `json:"provider_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

type reserveRequest struct {
	AppointmentID string `json:"appointment_id"`
	ClientID      string `json:"client_id"`
}

type confirmRequest struct {
	AppointmentID string `json:"appointment_id"`
	ClientID      string `json:"client_id"`
}

type appointmentItem struct {
	ID          string `json:"id"`
	ProviderID  string `json:"provider_id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	ClientID    string `json:"client_id,omitempty"`
	ReservedAt  string `json:"reserved_at,omitempty"`
	ConfirmedAt string `json:"confirmed_at,omitempty"`
}

func (h *ReservationHandler) CreateAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	req.StartTime = strings.TrimSpace(req.StartTime)
	req.EndTime = strings.TrimSpace(req.EndTime)
	if req.ProviderID == "" || req.StartTime == "" || req.EndTime == "" {
		writeErrorMessage(w, http.StatusBadRequest, "provider_id, start_time, and end_time required")
		return
	}

	created, err := h.engine.CreateAppointments(req.ProviderID, req.StartTime, req.EndTime)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	h.events.Publish(r.Context(), events.TopicAvailabilityCreated, req.ProviderID, map[string]any{
		"provider_id": req.ProviderID,
		"start_time":  req.StartTime,
		"end_time":    req.EndTime,
		"slot_count":  len(created),
	})

	writeJSON(w, http.StatusCreated, toItems(created))
}

func (h *ReservationHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	providerID := strings.TrimSpace(q.Get("provider_id"))
	startTime := strings.TrimSpace(q.Get("start_time"))
	endTime := strings.TrimSpace(q.Get("end_time"))
	if startTime == "" || endTime == "" {
		writeErrorMessage(w, http.StatusBadRequest, "start_time and end_time required")
		return
	}

	available, err := h.engine.AvailableAppointments(providerID, startTime, endTime)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItems(available))
}

func (h *ReservationHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.AppointmentID == "" || req.ClientID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "appointment_id and client_id required")
		return
	}

	updated, err := h.engine.Reserve(req.AppointmentID, req.ClientID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	h.events.Publish(r.Context(), events.TopicSlotReserved, updated.ID, map[string]any{
		"appointment_id": updated.ID,
		"provider_id":    updated.ProviderID,
		"client_id":      req.ClientID,
		"start_time":     updated.StartTime.Format(time.RFC3339),
		"reserved_at":    updated.ReservedAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, toItem(updated))
}

func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.AppointmentID == "" || req.ClientID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "appointment_id and client_id required")
		return
	}

	updated, err := h.engine.Confirm(req.AppointmentID, req.ClientID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	h.events.Publish(r.Context(), events.TopicSlotConfirmed, updated.ID, map[string]any{
		"appointment_id": updated.ID,
		"provider_id":    updated.ProviderID,
		"client_id":      req.ClientID,
		"start_time":     updated.StartTime.Format(time.RFC3339),
		"confirmed_at":   updated.ConfirmedAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, toItem(updated))
}

// writeEngineError maps the engine's error kinds onto status codes. The
// engine's messages are client-safe, so they pass through verbatim.
func (h *ReservationHandler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case reservation.IsInvalidInput(err), reservation.IsBadRequest(err):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case reservation.IsForbidden(err):
		writeErrorMessage(w, http.StatusForbidden, err.Error())
	case reservation.IsNotFound(err):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case reservation.IsConflict(err):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("reservation request failed", "path", r.URL.Path, "err", err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func toItem(appt model.Appointment) appointmentItem {
	item := appointmentItem{
		ID:         appt.ID,
		ProviderID: appt.ProviderID,
		StartTime:  appt.StartTime.UTC().Format(time.RFC3339),
		EndTime:    appt.EndTime.UTC().Format(time.RFC3339),
	}
	if appt.ClientID != nil {
		item.ClientID = *appt.ClientID
	}
	if appt.ReservedAt != nil {
		item.ReservedAt = appt.ReservedAt.UTC().Format(time.RFC3339)
	}
	if appt.ConfirmedAt != nil {
		item.ConfirmedAt = appt.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	return item
}

func toItems(appts []model.Appointment) []appointmentItem {
	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toItem(appt))
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
