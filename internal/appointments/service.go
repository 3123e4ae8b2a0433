package appointments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"clinix-backend/internal/documents"
	"clinix-backend/internal/intake"
	"clinix-backend/internal/queue"
	"clinix-backend/internal/shared/config"
	"clinix-backend/internal/shared/lock"
	"clinix-backend/internal/shared/metrics"
	"clinix-backend/internal/shared/storage/object"
	"clinix-backend/internal/shared/telemetry"
)

var tracer = otel.Tracer("clinix-backend/appointments")

// IntakeAnalyzer turns free-text symptoms into an intake result.
type IntakeAnalyzer interface {
	Analyze(ctx context.Context, text string) (intake.Result, error)
}

// DocumentProcessor stores and summarizes uploaded medical records.
type DocumentProcessor interface {
	Save(ctx context.Context, appointmentID, fileName string, r io.Reader) (string, error)
	Process(ctx context.Context, appointmentID, storageKey string) error
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// Service books appointments.
type Service struct {
	Repo       Repo
	Conflicts  *ConflictChecker
	Analyzer   IntakeAnalyzer
	Locker     lock.Locker
	Documents  DocumentProcessor
	Queue      queue.Client
	Processing string
	Now        func() time.Time
	NewID      func() string

	wg sync.WaitGroup
}

// NewService constructs a Service with the default conflict window and no lock.
func NewService(repo Repo, analyzer IntakeAnalyzer, docs DocumentProcessor) *Service {
	return &Service{
		Repo:       repo,
		Conflicts:  NewConflictChecker(repo, DefaultConflictWindow),
		Analyzer:   analyzer,
		Locker:     lock.Noop{},
		Documents:  docs,
		Processing: config.ProcessingSync,
	}
}

// Book validates, conflict-checks and persists a booking, then handles any
// attached document according to the processing mode.
func (s *Service) Book(ctx context.Context, req BookingRequest) (Appointment, error) {
	start := time.Now()
	req, err := normalizeRequest(req)
	if err != nil {
		metrics.IncBooking("invalid")
		return Appointment{}, err
	}

	ctx, span := tracer.Start(ctx, "appointments.Book")
	span.SetAttributes(attribute.String("clinic_id", req.ClinicID))
	defer span.End()

	fields := map[string]any{
		"clinic_id": req.ClinicID,
		"slot_time": req.SlotTime.Format(time.RFC3339),
	}

	if err := s.checkSlot(ctx, req.ClinicID, req.SlotTime); err != nil {
		s.recordRejection(ctx, span, fields, err)
		return Appointment{}, err
	}

	aiMeta := s.resolveAIMeta(ctx, req)
	now := s.now()
	appt := Appointment{
		ID:        s.newID(),
		ClinicID:  req.ClinicID,
		Patient:   Patient{Name: req.Name, Email: req.Email},
		SlotTime:  req.SlotTime,
		Symptoms:  req.Symptoms,
		AIMeta:    aiMeta,
		Status:    StatusBooked,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.locker().WithClinicLock(ctx, req.ClinicID, func(ctx context.Context) error {
		if err := s.checkSlot(ctx, req.ClinicID, req.SlotTime); err != nil {
			return err
		}
		return s.Repo.Create(ctx, appt)
	})
	if errors.Is(err, lock.ErrLockUnavailable) {
		err = fmt.Errorf("%w: %v", ErrConflictCheckFailed, err)
	}
	if err != nil {
		s.recordRejection(ctx, span, fields, err)
		return Appointment{}, err
	}

	fields["appointment_id"] = appt.ID
	fields["intake_source"] = aiMeta.Source
	fields["urgency"] = aiMeta.Urgency
	fields["duration_ms"] = metrics.SinceMillis(start)
	telemetry.InfoCtx(ctx, "booking.created", fields)
	metrics.IncBooking("booked")
	metrics.ObserveBookingDurationMs(metrics.SinceMillis(start))
	span.SetAttributes(attribute.String("appointment_id", appt.ID))

	if req.Document != nil && s.Documents != nil {
		appt = s.attachDocument(ctx, appt, *req.Document)
	}
	return appt, nil
}

// Get returns an appointment by ID.
func (s *Service) Get(ctx context.Context, id string) (Appointment, error) {
	if strings.TrimSpace(id) == "" {
		return Appointment{}, fmt.Errorf("%w: appointment id is required", ErrInvalidInput)
	}
	// ids are always UUIDs; anything else cannot exist
	if _, err := uuid.Parse(id); err != nil {
		return Appointment{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, id)
}

// BookedSlots lists the occupied slots of a clinic.
func (s *Service) BookedSlots(ctx context.Context, clinicID string) ([]BookedSlot, error) {
	if _, err := uuid.Parse(strings.TrimSpace(clinicID)); err != nil {
		return nil, fmt.Errorf("%w: clinic must be a valid id", ErrInvalidInput)
	}
	times, err := s.Repo.ListSlotTimes(ctx, strings.TrimSpace(clinicID))
	if err != nil {
		return nil, err
	}
	slots := make([]BookedSlot, 0, len(times))
	for _, t := range times {
		slots = append(slots, BookedSlot{SlotTime: t})
	}
	return slots, nil
}

// OpenDocument streams the stored document of an appointment along with its file name.
func (s *Service) OpenDocument(ctx context.Context, id string) (io.ReadCloser, string, error) {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if appt.DocumentPath == nil || *appt.DocumentPath == "" || s.Documents == nil {
		return nil, "", ErrNoDocument
	}
	rc, err := s.Documents.Open(ctx, *appt.DocumentPath)
	if errors.Is(err, object.ErrNotFound) {
		return nil, "", ErrNoDocument
	}
	if err != nil {
		return nil, "", err
	}
	// stored names carry a unique prefix
	name := path.Base(*appt.DocumentPath)
	if _, base, ok := strings.Cut(name, "_"); ok && base != "" {
		name = base
	}
	return rc, name, nil
}

// ProcessDocument summarizes a stored document for a queued job. An empty key
// falls back to the path recorded on the appointment.
func (s *Service) ProcessDocument(ctx context.Context, appointmentID, documentKey string) error {
	if s.Documents == nil {
		return errors.New("document processor not configured")
	}
	if strings.TrimSpace(documentKey) == "" {
		appt, err := s.Repo.GetByID(ctx, appointmentID)
		if err != nil {
			return err
		}
		if appt.DocumentPath == nil || *appt.DocumentPath == "" {
			return ErrNoDocument
		}
		documentKey = *appt.DocumentPath
	}
	return s.Documents.Process(ctx, appointmentID, documentKey)
}

// Wait blocks until background document jobs have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) checkSlot(ctx context.Context, clinicID string, slot time.Time) error {
	checker := s.Conflicts
	if checker == nil {
		checker = NewConflictChecker(s.Repo, DefaultConflictWindow)
	}
	conflict, err := checker.Check(ctx, clinicID, slot)
	if err != nil {
		return err
	}
	if conflict {
		return ErrSlotConflict
	}
	return nil
}

// resolveAIMeta prefers a valid caller-supplied result and otherwise reruns intake.
func (s *Service) resolveAIMeta(ctx context.Context, req BookingRequest) intake.Result {
	if req.AIMeta != nil {
		meta := *req.AIMeta
		meta.Urgency = strings.ToLower(strings.TrimSpace(meta.Urgency))
		if meta.Validate() == nil {
			return meta
		}
		telemetry.WarnCtx(ctx, "booking.ai_meta_rejected", map[string]any{
			"clinic_id": req.ClinicID,
			"urgency":   req.AIMeta.Urgency,
			"source":    req.AIMeta.Source,
		})
	}
	if s.Analyzer != nil {
		res, err := s.Analyzer.Analyze(ctx, strings.TrimSpace(req.Symptoms))
		if err == nil && res.Validate() == nil {
			return res
		}
	}
	return intake.Normalize(strings.TrimSpace(req.Symptoms))
}

func (s *Service) attachDocument(ctx context.Context, appt Appointment, doc Upload) Appointment {
	fields := map[string]any{"appointment_id": appt.ID, "processing": s.processing()}

	key, err := s.Documents.Save(ctx, appt.ID, doc.FileName, doc.Reader)
	if err != nil {
		fields["error"] = err.Error()
		telemetry.ErrorCtx(ctx, "document.save_failed", fields)
		return s.patch(ctx, appt, "", documents.SummaryUnavailable)
	}

	switch s.processing() {
	case config.ProcessingAsync:
		appt = s.patch(ctx, appt, key, "")
		s.processInBackground(ctx, appt.ID, key)
		return appt
	case config.ProcessingQueue:
		appt = s.patch(ctx, appt, key, "")
		if err := s.enqueue(ctx, appt.ID, key); err != nil {
			fields["error"] = err.Error()
			telemetry.WarnCtx(ctx, "document.enqueue_failed", fields)
			s.processInBackground(ctx, appt.ID, key)
		}
		return appt
	default:
		if err := s.Documents.Process(ctx, appt.ID, key); err != nil {
			fields["error"] = err.Error()
			telemetry.ErrorCtx(ctx, "document.process_failed", fields)
			return withDocumentPath(appt, key)
		}
		updated, err := s.Repo.GetByID(ctx, appt.ID)
		if err != nil {
			return withDocumentPath(appt, key)
		}
		return updated
	}
}

func (s *Service) processInBackground(ctx context.Context, appointmentID, key string) {
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Documents.Process(bg, appointmentID, key); err != nil {
			telemetry.ErrorCtx(bg, "document.process_failed", map[string]any{
				"appointment_id": appointmentID,
				"error":          err.Error(),
			})
		}
	}()
}

func (s *Service) enqueue(ctx context.Context, appointmentID, key string) error {
	if s.Queue == nil {
		return errors.New("queue client not configured")
	}
	return s.Queue.Send(ctx, queue.NewMessage(appointmentID, key, telemetry.RequestIDFromContext(ctx), s.now()))
}

// patch records document fields, keeping the in-memory copy in step even if the write fails.
func (s *Service) patch(ctx context.Context, appt Appointment, key, summary string) Appointment {
	if err := s.Repo.UpdateDocument(ctx, appt.ID, key, summary); err != nil {
		telemetry.ErrorCtx(ctx, "document.patch_failed", map[string]any{
			"appointment_id": appt.ID,
			"error":          err.Error(),
		})
	}
	if key != "" {
		appt = withDocumentPath(appt, key)
	}
	if summary != "" {
		appt.DocumentSummary = &summary
	}
	return appt
}

func withDocumentPath(appt Appointment, key string) Appointment {
	appt.DocumentPath = &key
	return appt
}

func (s *Service) recordRejection(ctx context.Context, span trace.Span, fields map[string]any, err error) {
	outcome := "error"
	switch {
	case errors.Is(err, ErrSlotConflict):
		outcome = "conflict"
	case errors.Is(err, lock.ErrLockNotAcquired):
		outcome = "locked"
	case errors.Is(err, ErrConflictCheckFailed):
		outcome = "check_failed"
	}
	metrics.IncBooking(outcome)
	fields["outcome"] = outcome
	fields["error"] = err.Error()
	if outcome == "error" || outcome == "check_failed" {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		telemetry.ErrorCtx(ctx, "booking.failed", fields)
		return
	}
	telemetry.InfoCtx(ctx, "booking.rejected", fields)
}

func (s *Service) locker() lock.Locker {
	if s.Locker == nil {
		return lock.Noop{}
	}
	return s.Locker
}

func (s *Service) processing() string {
	if s.Processing == "" {
		return config.ProcessingSync
	}
	return s.Processing
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func normalizeRequest(req BookingRequest) (BookingRequest, error) {
	req.ClinicID = strings.TrimSpace(req.ClinicID)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	switch {
	case req.Name == "":
		return req, fmt.Errorf("%w: name is required", ErrInvalidInput)
	case req.Email == "" || !strings.Contains(req.Email, "@"):
		return req, fmt.Errorf("%w: email must be a valid address", ErrInvalidInput)
	case req.ClinicID == "":
		return req, fmt.Errorf("%w: clinic is required", ErrInvalidInput)
	case req.SlotTime.IsZero():
		return req, fmt.Errorf("%w: slotTime is required", ErrInvalidInput)
	case strings.TrimSpace(req.Symptoms) == "":
		return req, fmt.Errorf("%w: symptoms are required", ErrInvalidInput)
	}
	if _, err := uuid.Parse(req.ClinicID); err != nil {
		return req, fmt.Errorf("%w: clinic must be a valid id", ErrInvalidInput)
	}
	req.SlotTime = req.SlotTime.UTC()
	return req, nil
}
