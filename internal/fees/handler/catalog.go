package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classledger/classledger-backend/internal/fees/service"
	"github.com/classledger/classledger-backend/pkg/httputil"
	"github.com/classledger/classledger-backend/pkg/logger"
)

// CatalogHandler handles fee catalog endpoints
type CatalogHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(svc *service.CatalogService, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: svc,
		logger:  log,
	}
}

// ListCategories lists active fee categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, categories)
}

// ListClassFees lists class-fee defaults for a class
func (h *CatalogHandler) ListClassFees(w http.ResponseWriter, r *http.Request) {
	classGroupID := chi.URLParam(r, "classId")

	defs, err := h.service.ListClassFees(r.Context(), classGroupID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, defs)
}

// ListOptionalFees lists optional-fee definitions applicable to a class
func (h *CatalogHandler) ListOptionalFees(w http.ResponseWriter, r *http.Request) {
	classGroupID := chi.URLParam(r, "classId")

	defs, err := h.service.ListOptionalFees(r.Context(), classGroupID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, defs)
}
