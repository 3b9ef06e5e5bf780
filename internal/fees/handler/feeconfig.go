package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classledger/classledger-backend/internal/fees/domain"
	"github.com/classledger/classledger-backend/internal/fees/service"
	"github.com/classledger/classledger-backend/pkg/errors"
	"github.com/classledger/classledger-backend/pkg/httputil"
	"github.com/classledger/classledger-backend/pkg/logger"
)

// ApplyFeeConfigurationRequest is the body for a fee configuration change.
type ApplyFeeConfigurationRequest struct {
	domain.FeeConfiguration
	EffectiveFrom *string `json:"effective_from,omitempty"` // YYYY-MM-DD
}

// FeeConfigHandler handles fee configuration endpoints
type FeeConfigHandler struct {
	service *service.FeeConfigService
	logger  *logger.Logger
}

// NewFeeConfigHandler creates a new fee configuration handler
func NewFeeConfigHandler(svc *service.FeeConfigService, log *logger.Logger) *FeeConfigHandler {
	return &FeeConfigHandler{
		service: svc,
		logger:  log,
	}
}

// Apply applies a fee configuration to a student
func (h *FeeConfigHandler) Apply(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")

	var req ApplyFeeConfigurationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req.FeeConfiguration); err != nil {
		httputil.Error(w, err)
		return
	}

	var effectiveFrom *time.Time
	if req.EffectiveFrom != nil {
		t, err := time.Parse("2006-01-02", *req.EffectiveFrom)
		if err != nil {
			httputil.Error(w, errors.BadRequest("invalid effective_from format, expected YYYY-MM-DD"))
			return
		}
		effectiveFrom = &t
	}

	snapshot, err := h.service.ApplyConfiguration(r.Context(), studentID, req.FeeConfiguration, effectiveFrom)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, snapshot)
}

// GetOpenWindow gets the student's current open fee window
func (h *FeeConfigHandler) GetOpenWindow(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")

	snapshot, err := h.service.GetOpenWindow(r.Context(), studentID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, snapshot)
}

// GetWindowHistory gets the student's full fee window history
func (h *FeeConfigHandler) GetWindowHistory(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")

	history, err := h.service.GetWindowHistory(r.Context(), studentID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, history)
}
