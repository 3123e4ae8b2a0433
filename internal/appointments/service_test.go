package appointments

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinix-backend/internal/documents"
	"clinix-backend/internal/intake"
	"clinix-backend/internal/llm"
	"clinix-backend/internal/queue"
	"clinix-backend/internal/shared/config"
	"clinix-backend/internal/shared/lock"
	localstore "clinix-backend/internal/shared/storage/object/local"
)

const testClinic = "3f2b8c1e-9d4a-4e7b-8a61-2c5d9e0f1a7b"

var testSlot = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type stubAnalyzer struct {
	mu    sync.Mutex
	res   intake.Result
	err   error
	calls int
	text  string
}

func (s *stubAnalyzer) Analyze(ctx context.Context, text string) (intake.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.text = text
	return s.res, s.err
}

type staticText string

func (t staticText) ExtractText(ctx context.Context, path string) string { return string(t) }

type staticLLM struct {
	reply string
	err   error
}

func (s staticLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	return s.reply, s.err
}

type recordingQueue struct {
	mu   sync.Mutex
	msgs []queue.Message
	err  error
}

func (q *recordingQueue) Send(ctx context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return q.err
}

type brokenSlots struct {
	*MemoryRepo
}

func (brokenSlots) ListSlotTimes(ctx context.Context, clinicID string) ([]time.Time, error) {
	return nil, errors.New("timeout")
}

type busyLocker struct{}

func (busyLocker) WithClinicLock(ctx context.Context, clinicID string, fn func(context.Context) error) error {
	return lock.ErrLockNotAcquired
}

type downLocker struct{}

func (downLocker) WithClinicLock(ctx context.Context, clinicID string, fn func(context.Context) error) error {
	return lock.ErrLockUnavailable
}

func analyzed() intake.Result {
	return intake.Result{Summary: "fever for two days", Urgency: intake.UrgencyMedium, Source: intake.SourceProviderA}
}

func newTestService(t *testing.T, summaryReply string) (*Service, *MemoryRepo, *stubAnalyzer) {
	t.Helper()
	repo := NewMemoryRepo()
	analyzer := &stubAnalyzer{res: analyzed()}
	proc := &documents.Processor{
		Store:      localstore.New(t.TempDir()),
		Extractor:  staticText(strings.Repeat("Haemoglobin 13.1 g/dL within range. ", 3)),
		Summarizer: documents.NewSummarizer("groq", staticLLM{reply: summaryReply}),
		Records:    repo,
		MinChars:   50,
	}
	svc := NewService(repo, analyzer, proc)
	return svc, repo, analyzer
}

func bookingAt(slot time.Time) BookingRequest {
	return BookingRequest{
		ClinicID: testClinic,
		SlotTime: slot,
		Name:     "Asha Rao",
		Email:    "asha@example.com",
		Symptoms: "bukhar hai since two days",
	}
}

func TestBookSpacingAroundConflictWindow(t *testing.T) {
	svc, repo, _ := newTestService(t, "ok")
	ctx := context.Background()

	first, err := svc.Book(ctx, bookingAt(testSlot))
	require.NoError(t, err)
	assert.Equal(t, StatusBooked, first.Status)

	_, err = svc.Book(ctx, bookingAt(testSlot.Add(5*time.Minute)))
	require.ErrorIs(t, err, ErrSlotConflict)

	second, err := svc.Book(ctx, bookingAt(testSlot.Add(15*time.Minute)))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	slots, err := repo.ListSlotTimes(ctx, testClinic)
	require.NoError(t, err)
	assert.Len(t, slots, 2)
}

func TestBookValidation(t *testing.T) {
	svc, _, analyzer := newTestService(t, "ok")
	ctx := context.Background()

	cases := map[string]func(r *BookingRequest){
		"missing name":    func(r *BookingRequest) { r.Name = " " },
		"bad email":       func(r *BookingRequest) { r.Email = "asha.example.com" },
		"missing clinic":  func(r *BookingRequest) { r.ClinicID = "" },
		"non uuid clinic": func(r *BookingRequest) { r.ClinicID = "clinic-1" },
		"zero slot":       func(r *BookingRequest) { r.SlotTime = time.Time{} },
		"blank symptoms":  func(r *BookingRequest) { r.Symptoms = "   " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := bookingAt(testSlot)
			mutate(&req)
			_, err := svc.Book(ctx, req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Zero(t, analyzer.calls)
}

func TestBookUsesValidCallerAIMeta(t *testing.T) {
	svc, _, analyzer := newTestService(t, "ok")
	meta := intake.Result{Summary: "chest pain", Urgency: "HIGH", Source: intake.SourceProviderB}
	req := bookingAt(testSlot)
	req.AIMeta = &meta

	appt, err := svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, analyzer.calls)
	assert.Equal(t, intake.UrgencyHigh, appt.AIMeta.Urgency)
	assert.Equal(t, intake.SourceProviderB, appt.AIMeta.Source)
}

func TestBookRerunsIntakeForInvalidAIMeta(t *testing.T) {
	svc, _, analyzer := newTestService(t, "ok")
	req := bookingAt(testSlot)
	req.AIMeta = &intake.Result{Summary: "x", Urgency: "critical", Source: intake.SourceProviderA}

	appt, err := svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, analyzer.calls)
	assert.Equal(t, analyzed(), appt.AIMeta)
}

func TestBookStoresSymptomsVerbatim(t *testing.T) {
	svc, repo, analyzer := newTestService(t, "ok")
	req := bookingAt(testSlot)
	req.Symptoms = "  sir dard, bukhar since kal\n"

	appt, err := svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, req.Symptoms, appt.Symptoms)
	assert.Equal(t, "sir dard, bukhar since kal", analyzer.text)

	stored, err := repo.GetByID(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, req.Symptoms, stored.Symptoms)
}

func TestBookFallsBackToNormalizerWhenAnalyzerFails(t *testing.T) {
	svc, _, analyzer := newTestService(t, "ok")
	analyzer.err = intake.ErrInvalidInput
	req := bookingAt(testSlot)
	req.Symptoms = "dard"

	appt, err := svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, intake.SourceFallback, appt.AIMeta.Source)
	assert.True(t, intake.ValidUrgency(appt.AIMeta.Urgency))
}

func TestBookFailsClosedWhenSlotsUnreadable(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, &stubAnalyzer{res: analyzed()}, nil)
	svc.Conflicts = NewConflictChecker(brokenSlots{repo}, 0)

	_, err := svc.Book(context.Background(), bookingAt(testSlot))
	require.ErrorIs(t, err, ErrConflictCheckFailed)

	slots, _ := repo.ListSlotTimes(context.Background(), testClinic)
	assert.Empty(t, slots)
}

func TestBookLockOutcomes(t *testing.T) {
	svc, repo, _ := newTestService(t, "ok")

	svc.Locker = busyLocker{}
	_, err := svc.Book(context.Background(), bookingAt(testSlot))
	assert.ErrorIs(t, err, lock.ErrLockNotAcquired)

	svc.Locker = downLocker{}
	_, err = svc.Book(context.Background(), bookingAt(testSlot))
	assert.ErrorIs(t, err, ErrConflictCheckFailed)

	slots, _ := repo.ListSlotTimes(context.Background(), testClinic)
	assert.Empty(t, slots)
}

func TestBookSyncDocumentIsSummarized(t *testing.T) {
	svc, _, _ := newTestService(t, "Normal blood count.")
	req := bookingAt(testSlot)
	req.Document = &Upload{FileName: "cbc.pdf", Reader: strings.NewReader("%PDF-1.4 body")}

	appt, err := svc.Book(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, appt.DocumentSummary)
	assert.Equal(t, "Normal blood count.", *appt.DocumentSummary)
	require.NotNil(t, appt.DocumentPath)
	assert.True(t, strings.HasPrefix(*appt.DocumentPath, "appointments/"+appt.ID+"/"))

	rc, name, err := svc.OpenDocument(context.Background(), appt.ID)
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF-1.4 body", string(body))
	assert.Equal(t, "cbc.pdf", name)
}

func TestBookSummaryFailureKeepsBooking(t *testing.T) {
	repo := NewMemoryRepo()
	proc := &documents.Processor{
		Store:      localstore.New(t.TempDir()),
		Extractor:  staticText(strings.Repeat("x", 80)),
		Summarizer: documents.NewSummarizer("groq", staticLLM{err: llm.ErrMissingAPIKey}),
		Records:    repo,
		MinChars:   50,
	}
	svc := NewService(repo, &stubAnalyzer{res: analyzed()}, proc)
	req := bookingAt(testSlot)
	req.Document = &Upload{FileName: "r.pdf", Reader: strings.NewReader("%PDF-1.4")}

	appt, err := svc.Book(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, appt.DocumentSummary)
	assert.Equal(t, documents.SummaryUnavailable, *appt.DocumentSummary)
}

func TestBookAsyncDocumentCompletesInBackground(t *testing.T) {
	svc, repo, _ := newTestService(t, "Async summary.")
	svc.Processing = config.ProcessingAsync
	req := bookingAt(testSlot)
	req.Document = &Upload{FileName: "r.pdf", Reader: strings.NewReader("%PDF-1.4")}

	ctx, cancel := context.WithCancel(context.Background())
	appt, err := svc.Book(ctx, req)
	cancel()
	require.NoError(t, err)
	require.NotNil(t, appt.DocumentPath)

	svc.Wait()
	stored, err := repo.GetByID(context.Background(), appt.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DocumentSummary)
	assert.Equal(t, "Async summary.", *stored.DocumentSummary)
}

func TestBookQueueModeEnqueuesJob(t *testing.T) {
	svc, repo, _ := newTestService(t, "Queued summary.")
	q := &recordingQueue{}
	svc.Processing = config.ProcessingQueue
	svc.Queue = q
	req := bookingAt(testSlot)
	req.Document = &Upload{FileName: "r.pdf", Reader: strings.NewReader("%PDF-1.4")}

	appt, err := svc.Book(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, q.msgs, 1)
	assert.Equal(t, appt.ID, q.msgs[0].AppointmentID)
	assert.Equal(t, *appt.DocumentPath, q.msgs[0].DocumentKey)
	assert.Nil(t, appt.DocumentSummary)

	require.NoError(t, svc.ProcessDocument(context.Background(), appt.ID, ""))
	stored, _ := repo.GetByID(context.Background(), appt.ID)
	require.NotNil(t, stored.DocumentSummary)
	assert.Equal(t, "Queued summary.", *stored.DocumentSummary)
}

func TestBookQueueFailureProcessesInline(t *testing.T) {
	svc, repo, _ := newTestService(t, "Fallback summary.")
	svc.Processing = config.ProcessingQueue
	svc.Queue = &recordingQueue{err: errors.New("sqs down")}
	req := bookingAt(testSlot)
	req.Document = &Upload{FileName: "r.pdf", Reader: strings.NewReader("%PDF-1.4")}

	appt, err := svc.Book(context.Background(), req)
	require.NoError(t, err)
	svc.Wait()

	stored, _ := repo.GetByID(context.Background(), appt.ID)
	require.NotNil(t, stored.DocumentSummary)
	assert.Equal(t, "Fallback summary.", *stored.DocumentSummary)
}

func TestProcessDocumentWithoutDocument(t *testing.T) {
	svc, _, _ := newTestService(t, "ok")
	appt, err := svc.Book(context.Background(), bookingAt(testSlot))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ProcessDocument(context.Background(), appt.ID, ""), ErrNoDocument)
	_, _, err = svc.OpenDocument(context.Background(), appt.ID)
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestBookedSlots(t *testing.T) {
	svc, _, _ := newTestService(t, "ok")
	ctx := context.Background()
	_, err := svc.Book(ctx, bookingAt(testSlot.Add(time.Hour)))
	require.NoError(t, err)
	_, err = svc.Book(ctx, bookingAt(testSlot))
	require.NoError(t, err)

	slots, err := svc.BookedSlots(ctx, testClinic)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.True(t, slots[0].SlotTime.Equal(testSlot))

	_, err = svc.BookedSlots(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
