package appointments

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"clinix-backend/internal/intake"
	"clinix-backend/internal/shared/lock"
	"clinix-backend/internal/shared/server/respond"
	"clinix-backend/internal/shared/telemetry"
)

const defaultMaxUploadBytes = 5 << 20

// Handler wires HTTP handlers to the appointments service.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches appointment routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/appointments", h.book)
	rg.GET("/appointments/clinic/:clinicId", h.bookedSlots)
	rg.GET("/appointments/:id", h.get)
	rg.GET("/appointments/:id/pdf", h.document)
}

type bookingBody struct {
	Clinic   string          `json:"clinic"`
	SlotTime string          `json:"slotTime"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Symptoms string          `json:"symptoms"`
	AIMeta   json.RawMessage `json:"aiMeta"`
}

func (h *Handler) book(c *gin.Context) {
	// multipart overhead on top of the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+1<<20)

	var (
		body bookingBody
		doc  *Upload
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid multipart form", nil)
			return
		}
		defer form.RemoveAll()
		body = bookingBody{
			Clinic:   formValue(form, "clinic"),
			SlotTime: formValue(form, "slotTime"),
			Name:     formValue(form, "name"),
			Email:    formValue(form, "email"),
			Symptoms: formValue(form, "symptoms"),
			AIMeta:   json.RawMessage(formValue(form, "aiMeta")),
		}
		if files := form.File["pdf"]; len(files) > 0 {
			upload, closeFn, err := h.openPDF(files[0])
			if err != nil {
				respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), []map[string]string{
					{"field": "pdf", "issue": "invalid"},
				})
				return
			}
			defer closeFn()
			doc = upload
		}
	} else if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	slot, err := parseSlotTime(body.SlotTime)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "slotTime must be an RFC3339 timestamp", []map[string]string{
			{"field": "slotTime", "issue": "invalid"},
		})
		return
	}

	req := BookingRequest{
		ClinicID: body.Clinic,
		SlotTime: slot,
		Name:     body.Name,
		Email:    body.Email,
		Symptoms: body.Symptoms,
		AIMeta:   decodeAIMeta(c, body.AIMeta),
		Document: doc,
	}
	c.Set("clinicId", strings.TrimSpace(body.Clinic))

	appt, err := h.Svc.Book(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Set("appointmentId", appt.ID)
	c.Set("intakeSource", appt.AIMeta.Source)
	respond.Created(c, appt)
}

func (h *Handler) bookedSlots(c *gin.Context) {
	clinicID := c.Param("clinicId")
	c.Set("clinicId", clinicID)
	slots, err := h.Svc.BookedSlots(c.Request.Context(), clinicID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.OK(c, slots)
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set("appointmentId", id)
	appt, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.OK(c, appt)
}

func (h *Handler) document(c *gin.Context) {
	id := c.Param("id")
	c.Set("appointmentId", id)
	rc, name, err := h.Svc.OpenDocument(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, "application/pdf", rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", name),
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "), nil)
	case errors.Is(err, ErrSlotConflict):
		respond.Error(c, http.StatusConflict, "slot_conflict", "This time slot is already booked. Please choose another time.", nil)
	case errors.Is(err, lock.ErrLockNotAcquired):
		respond.Error(c, http.StatusConflict, "slot_being_booked", "Another booking for this clinic is in progress. Please retry.", nil)
	case errors.Is(err, ErrConflictCheckFailed):
		respond.Error(c, http.StatusServiceUnavailable, "conflict_check_unavailable", "Unable to verify slot availability right now. Please retry.", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "appointment not found", nil)
	case errors.Is(err, ErrNoDocument):
		respond.Error(c, http.StatusNotFound, "not_found", "appointment has no document", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "request failed", nil)
	}
}

func (h *Handler) openPDF(fh *multipart.FileHeader) (*Upload, func(), error) {
	if fh.Size > h.MaxUploadBytes {
		return nil, nil, fmt.Errorf("pdf exceeds %d bytes", h.MaxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, errors.New("pdf could not be read")
	}
	br := bufio.NewReader(f)
	head, _ := br.Peek(512)
	if http.DetectContentType(head) != "application/pdf" {
		_ = f.Close()
		return nil, nil, errors.New("only PDF files are allowed")
	}
	return &Upload{FileName: fh.Filename, Reader: br}, func() { _ = f.Close() }, nil
}

func formValue(form *multipart.Form, key string) string {
	if vals := form.Value[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func parseSlotTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	// datetime-local inputs omit the offset
	return time.Parse("2006-01-02T15:04", raw)
}

// decodeAIMeta accepts the aiMeta field as a JSON object or a JSON-encoded
// string; anything unparseable is dropped so intake reruns.
func decodeAIMeta(c *gin.Context, raw json.RawMessage) *intake.Result {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return nil
		}
		trimmed = inner
	}
	var meta intake.Result
	if err := json.Unmarshal([]byte(trimmed), &meta); err != nil {
		telemetry.WarnCtx(c.Request.Context(), "booking.ai_meta_unparseable", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	return &meta
}
