package schedule

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pulsefeed-io/platform/pkg/common/logger"
	"github.com/pulsefeed-io/platform/pkg/common/models"
	"github.com/pulsefeed-io/platform/pkg/publication"
)

type Handler struct {
	service      *Service
	publications *publication.Service
}

func NewHandler(service *Service, publications *publication.Service) *Handler {
	return &Handler{service: service, publications: publications}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/schedule/{day}/allocate", h.handleAllocate).Methods(http.MethodPost)
	r.HandleFunc("/schedule/{day}", h.handleGetDay).Methods(http.MethodGet)
	r.HandleFunc("/schedule/{day}", h.handleResetDay).Methods(http.MethodDelete)
	r.HandleFunc("/slots/{id}/claim", h.handleClaim).Methods(http.MethodPost)
	r.HandleFunc("/slots/{id}/outcome", h.handleOutcome).Methods(http.MethodPost)
	r.HandleFunc("/diversity/report", h.handleDiversityReport).Methods(http.MethodGet)
}

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req models.AllocationRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
	}
	req.Day = mux.Vars(r)["day"]

	summary, err := h.service.Allocate(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidDay) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).WithField("day", req.Day).Error("Allocation run failed")
		// Partial results are valid; surface them with the failure.
		writeJSON(w, http.StatusInternalServerError, summary)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleGetDay(w http.ResponseWriter, r *http.Request) {
	day := mux.Vars(r)["day"]
	slots, err := h.service.GetDay(r.Context(), day)
	if err != nil {
		if errors.Is(err, ErrInvalidDay) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("Failed to list schedule")
		http.Error(w, "failed to list schedule", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"day": day, "slots": slots})
}

func (h *Handler) handleResetDay(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		http.Error(w, "confirm=true is required", http.StatusBadRequest)
		return
	}
	day := mux.Vars(r)["day"]
	removed, err := h.service.ResetDay(r.Context(), day)
	if err != nil {
		if errors.Is(err, ErrInvalidDay) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("Failed to reset schedule day")
		http.Error(w, "failed to reset schedule day", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"day": day, "removed": removed})
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	slotID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid slot id", http.StatusBadRequest)
		return
	}
	slot, err := h.publications.Claim(r.Context(), slotID)
	if err != nil {
		if errors.Is(err, publication.ErrNotClaimable) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if errors.Is(err, ErrSlotNotFound) {
			http.Error(w, "slot not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("Failed to claim slot")
		http.Error(w, "failed to claim slot", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"slot": slot})
}

func (h *Handler) handleOutcome(w http.ResponseWriter, r *http.Request) {
	slotID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid slot id", http.StatusBadRequest)
		return
	}
	var outcome models.PublishOutcome
	if err := json.NewDecoder(r.Body).Decode(&outcome); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	outcome.SlotID = slotID

	slot, err := h.publications.RecordOutcome(r.Context(), outcome)
	if err != nil {
		if errors.Is(err, publication.ErrNotPosting) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if errors.Is(err, ErrSlotNotFound) {
			http.Error(w, "slot not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("Failed to record outcome")
		http.Error(w, "failed to record outcome", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"slot": slot})
}

func (h *Handler) handleDiversityReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.DiversityReport(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("Failed to build diversity report")
		http.Error(w, "failed to build diversity report", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"report": report})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("Failed to encode response")
	}
}
