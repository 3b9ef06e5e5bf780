package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classledger/classledger-backend/internal/payroll/service"
	"github.com/classledger/classledger-backend/pkg/errors"
	"github.com/classledger/classledger-backend/pkg/httputil"
	"github.com/classledger/classledger-backend/pkg/logger"
)

// SetStructureRequest is the body for setting a teacher's salary structure.
type SetStructureRequest struct {
	service.StructureInput
	EffectiveFrom string `json:"effective_from" validate:"required"` // YYYY-MM-DD
}

// StructureHandler handles salary structure endpoints
type StructureHandler struct {
	service *service.StructureService
	logger  *logger.Logger
}

// NewStructureHandler creates a new structure handler
func NewStructureHandler(svc *service.StructureService, log *logger.Logger) *StructureHandler {
	return &StructureHandler{
		service: svc,
		logger:  log,
	}
}

// Set sets a teacher's salary structure
func (h *StructureHandler) Set(w http.ResponseWriter, r *http.Request) {
	teacherID := chi.URLParam(r, "teacherId")

	var req SetStructureRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	effectiveFrom, err := time.Parse("2006-01-02", req.EffectiveFrom)
	if err != nil {
		httputil.Error(w, errors.BadRequest("invalid effective_from format, expected YYYY-MM-DD"))
		return
	}

	structure, err := h.service.SetStructure(r.Context(), teacherID, req.StructureInput, effectiveFrom)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, structure)
}

// GetActive gets the structure covering a date (today by default)
func (h *StructureHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	teacherID := chi.URLParam(r, "teacherId")

	onDate := time.Now().UTC()
	if s := r.URL.Query().Get("on_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			httputil.Error(w, errors.BadRequest("invalid on_date format, expected YYYY-MM-DD"))
			return
		}
		onDate = t
	}

	structure, err := h.service.GetActiveStructure(r.Context(), teacherID, onDate)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, structure)
}

// History lists every structure window for a teacher
func (h *StructureHandler) History(w http.ResponseWriter, r *http.Request) {
	teacherID := chi.URLParam(r, "teacherId")

	structures, err := h.service.GetStructureHistory(r.Context(), teacherID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, structures)
}
