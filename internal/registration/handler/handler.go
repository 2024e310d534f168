package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"imageref/internal/platform/middleware"
	"imageref/internal/registration/models"
	dErrors "imageref/pkg/domain-errors"
	"imageref/pkg/platform/httputil"
)

// Service defines the registration operations the transport needs.
type Service interface {
	FindByEmail(ctx context.Context, email string) (*models.LookupResult, error)
	Submit(ctx context.Context, req models.SubmitRequest) (*models.SubmissionResult, error)
}

// Spooler writes an incoming file part to local disk.
type Spooler interface {
	Spool(r io.Reader, originalName string) (models.Upload, error)
	Discard(upload models.Upload)
}

const (
	// formOverhead is the slack allowed above the file limit for the text
	// fields and multipart framing.
	formOverhead   = 64 << 10
	maxFieldLength = 1 << 10
)

// Handler serves the public form API.
type Handler struct {
	logger         *slog.Logger
	registration   Service
	spooler        Spooler
	maxUploadBytes int64
}

// New creates a registration Handler. maxUploadBytes bounds the image part.
func New(registration Service, spooler Spooler, logger *slog.Logger, maxUploadBytes int64) *Handler {
	return &Handler{
		logger:         logger,
		registration:   registration,
		spooler:        spooler,
		maxUploadBytes: maxUploadBytes,
	}
}

// Register registers the registration routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/check-email", h.handleCheckEmail)
	r.Post("/upload-image", h.handleUploadImage)
}

// handleCheckEmail reports the children registered under an email. The
// NotFound and AlreadyComplete outcomes are 200 responses with success=false.
func (h *Handler) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req := models.CheckEmailRequest{Email: r.URL.Query().Get("email")}
	if !httputil.Prepare(ctx, w, h.logger, requestID, &req) {
		return
	}

	result, err := h.registration.FindByEmail(ctx, req.Email)
	if err != nil {
		h.logger.ErrorContext(ctx, "email lookup failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if gateErr := result.Err(); gateErr != nil {
		httputil.WriteJSON(w, http.StatusOK, &models.CheckEmailResponse{
			Success: false,
			Message: gateErr.Error(),
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.CheckEmailResponse{
		Success:  true,
		Children: result.Children,
	})
}

func (h *Handler) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	form, upload, err := h.readUpload(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "unreadable upload request",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if !httputil.Prepare(ctx, w, h.logger, requestID, &form) {
		h.spooler.Discard(upload)
		return
	}
	if upload.Path == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "file is required"))
		return
	}

	result, err := h.registration.Submit(ctx, models.SubmitRequest{
		ChildName: form.ChildName,
		Email:     form.Email,
		Age:       form.Age,
		Upload:    upload,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &models.UploadResponse{
		Success:  true,
		Category: result.Category,
		FileName: result.FileName,
	})
}

// readUpload streams the multipart body: the first "file" part is spooled
// to disk, the text fields are collected into the form. Any spooled file is
// discarded when an error is returned.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (form models.UploadForm, upload models.Upload, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)
	defer func() {
		if err != nil {
			h.spooler.Discard(upload)
			upload = models.Upload{}
		}
	}()

	mr, err := r.MultipartReader()
	if err != nil {
		return form, upload, dErrors.New(dErrors.CodeBadRequest, "expected a multipart/form-data body")
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, upload, nil
		}
		if err != nil {
			return form, upload, bodyError(err)
		}

		switch part.FormName() {
		case "file":
			if upload.Path == "" && part.FileName() != "" {
				upload, err = h.spoolPart(part)
			}
		case "childName":
			form.ChildName, err = readField(part)
		case "email":
			form.Email, err = readField(part)
		case "age":
			form.RawAge, err = readField(part)
		}
		part.Close()
		if err != nil {
			return form, upload, err
		}
	}
}

func (h *Handler) spoolPart(part *multipart.Part) (models.Upload, error) {
	limited := &io.LimitedReader{R: part, N: h.maxUploadBytes + 1}
	upload, err := h.spooler.Spool(limited, part.FileName())
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return models.Upload{}, bodyError(err)
		}
		return models.Upload{}, dErrors.Wrap(err, dErrors.CodeInternal, "upload could not be saved")
	}
	if upload.Size > h.maxUploadBytes {
		h.spooler.Discard(upload)
		return models.Upload{}, dErrors.New(dErrors.CodePayloadTooLarge, "image exceeds the upload size limit")
	}
	return upload, nil
}

func readField(part io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldLength+1))
	if err != nil {
		return "", bodyError(err)
	}
	if len(data) > maxFieldLength {
		return "", dErrors.New(dErrors.CodeBadRequest, "form field too long")
	}
	return string(data), nil
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return dErrors.New(dErrors.CodePayloadTooLarge, "request body exceeds the upload size limit")
	}
	return dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed multipart body")
}
