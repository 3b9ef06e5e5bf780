package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classledger/classledger-backend/internal/payroll/repository"
	"github.com/classledger/classledger-backend/internal/payroll/service"
	"github.com/classledger/classledger-backend/pkg/errors"
	"github.com/classledger/classledger-backend/pkg/httputil"
	"github.com/classledger/classledger-backend/pkg/logger"
)

// GenerateSalaryRequest is the body for generating a monthly salary record.
type GenerateSalaryRequest struct {
	TeacherID string `json:"teacher_id" validate:"required,uuid"`
	Month     int    `json:"month" validate:"required,gte=1,lte=12"`
	Year      int    `json:"year" validate:"required,gte=2000,lte=2100"`
}

// RejectSalaryRequest is the body for rejecting a salary record.
type RejectSalaryRequest struct {
	Reason string `json:"reason" validate:"required,min=5"`
}

// MarkPaidRequest is the body for marking a salary record paid.
type MarkPaidRequest struct {
	PaymentDate  string  `json:"payment_date,omitempty"` // YYYY-MM-DD
	PaymentMode  string  `json:"payment_mode" validate:"required,oneof=bank cash upi"`
	PaymentProof *string `json:"payment_proof,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// SalaryHandler handles salary lifecycle endpoints
type SalaryHandler struct {
	service *service.SalaryService
	logger  *logger.Logger
}

// NewSalaryHandler creates a new salary handler
func NewSalaryHandler(svc *service.SalaryService, log *logger.Logger) *SalaryHandler {
	return &SalaryHandler{
		service: svc,
		logger:  log,
	}
}

// Generate generates a salary record for a teacher and month
func (h *SalaryHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateSalaryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	record, err := h.service.Generate(r.Context(), req.TeacherID, req.Month, req.Year)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, record)
}

// Get gets a salary record by ID
func (h *SalaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, record)
}

// List lists salary records with filters
func (h *SalaryHandler) List(w http.ResponseWriter, r *http.Request) {
	params := repository.SalaryListParams{
		Page:    1,
		PerPage: 20,
	}

	if page, _ := strconv.Atoi(r.URL.Query().Get("page")); page > 0 {
		params.Page = page
	}
	if perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page")); perPage > 0 && perPage <= 100 {
		params.PerPage = perPage
	}
	if teacherID := r.URL.Query().Get("teacher_id"); teacherID != "" {
		params.TeacherID = &teacherID
	}
	if month, err := strconv.Atoi(r.URL.Query().Get("month")); err == nil && month >= 1 && month <= 12 {
		params.Month = &month
	}
	if year, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil && year > 0 {
		params.Year = &year
	}
	if status := r.URL.Query().Get("status"); status != "" {
		params.Status = &status
	}

	records, total, err := h.service.List(r.Context(), params)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / params.PerPage
	if int(total)%params.PerPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, records, &httputil.Meta{
		Page:       params.Page,
		PerPage:    params.PerPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Approve approves a pending salary record
func (h *SalaryHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.service.Approve(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, record)
}

// Reject rejects a pending salary record
func (h *SalaryHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RejectSalaryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	record, err := h.service.Reject(r.Context(), id, req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, record)
}

// MarkPaid marks an approved salary record as paid
func (h *SalaryHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req MarkPaidRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	details := service.PaymentDetails{
		PaymentMode:  req.PaymentMode,
		PaymentProof: req.PaymentProof,
		Notes:        req.Notes,
	}
	if req.PaymentDate != "" {
		t, err := time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			httputil.Error(w, errors.BadRequest("invalid payment_date format, expected YYYY-MM-DD"))
			return
		}
		details.PaymentDate = t
	}

	record, err := h.service.MarkPaid(r.Context(), id, details)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, record)
}
