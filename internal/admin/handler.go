package admin

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"imageref/internal/platform/middleware"
	"imageref/internal/registration/models"
	dErrors "imageref/pkg/domain-errors"
	"imageref/pkg/platform/httputil"
)

const defaultAuditLimit = 50

// Handler handles admin read views.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func New(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register registers admin routes with the router
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/stats", h.HandleGetStats)
	r.Get("/admin/registrations", h.HandleGetRegistrations)
	r.Get("/admin/gallery", h.HandleGetGallery)
	r.Get("/admin/audit/recent", h.HandleGetRecentAuditEvents)
}

func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.GetStats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get stats",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// HandleGetRegistrations serves ?sort=<field>&order=asc|desc.
func (h *Handler) HandleGetRegistrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	q := r.URL.Query()
	field := SortField(q.Get("sort"))
	descending := false
	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
	case "desc":
		descending = true
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "order must be asc or desc"))
		return
	}

	records, err := h.service.Registrations(ctx, field, descending)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to list registrations",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	rows := make([]RegistrationRow, len(records))
	for i, rec := range records {
		rows[i] = toRegistrationRow(rec)
	}
	httputil.WriteJSON(w, http.StatusOK, &RegistrationsResponse{Registrations: rows, Total: len(rows)})
}

func (h *Handler) HandleGetGallery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groups, err := h.service.Gallery(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list gallery",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	total := 0
	for _, g := range groups {
		total += len(g.Files)
	}
	httputil.WriteJSON(w, http.StatusOK, &GalleryResponse{Categories: groups, Total: total})
}

func (h *Handler) HandleGetRecentAuditEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultAuditLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	events, err := h.service.GetRecentAuditEvents(ctx, strings.TrimSpace(r.URL.Query().Get("email")), limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get recent audit events",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  len(events),
	})
}

// RegistrationRow is the JSON view of one ledger record.
type RegistrationRow struct {
	ChildName      string        `json:"childName"`
	ParentName     string        `json:"parentName"`
	DateOfBirth    string        `json:"dateOfBirth"`
	Age            int           `json:"age"`
	Gender         string        `json:"gender"`
	EducationBoard string        `json:"educationBoard"`
	Grade          string        `json:"grade"`
	Section        string        `json:"section"`
	CountryCode    string        `json:"countryCode"`
	PhoneNumber    string        `json:"phoneNumber"`
	Email          string        `json:"email"`
	RegistrationID string        `json:"registrationId"`
	Status         models.Status `json:"status"`
}

type RegistrationsResponse struct {
	Registrations []RegistrationRow `json:"registrations"`
	Total         int               `json:"total"`
}

type GalleryResponse struct {
	Categories []GalleryGroup `json:"categories"`
	Total      int            `json:"total"`
}

func toRegistrationRow(r models.Record) RegistrationRow {
	return RegistrationRow{
		ChildName:      r.ChildName,
		ParentName:     r.ParentName,
		DateOfBirth:    r.DateOfBirth,
		Age:            r.Age,
		Gender:         r.Gender,
		EducationBoard: r.EducationBoard,
		Grade:          r.Grade,
		Section:        r.Section,
		CountryCode:    r.CountryCode,
		PhoneNumber:    r.PhoneNumber,
		Email:          r.Email,
		RegistrationID: r.RegistrationID,
		Status:         r.Status.Normalized(),
	}
}
