package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"rfp-intake-platform/internal/auth"
	"rfp-intake-platform/internal/config"
	"rfp-intake-platform/internal/logger"
	"rfp-intake-platform/internal/telemetry"
	"rfp-intake-platform/models"

	"github.com/google/uuid"
)

// NavTargetAnalysis is the navigation target emitted once a submission
// reaches Done.
const NavTargetAnalysis = "/analysis"

// SubmissionState tracks one document submission through the intake
// pipeline.
type SubmissionState string

const (
	StateIdle       SubmissionState = "idle"
	StateSelected   SubmissionState = "selected"
	StateValidating SubmissionState = "validating"
	StateSubmitting SubmissionState = "submitting"
	StateProcessing SubmissionState = "processing"
	StateDone       SubmissionState = "done"
	StateErrored    SubmissionState = "errored"
)

// SettingsReader exposes the capability flags the workflow checks before
// creating any record.
type SettingsReader interface {
	Get(ctx context.Context) (*models.AppSettings, error)
}

// RecordStore is the slice of the document record store the workflow needs.
type RecordStore interface {
	Insert(ctx context.Context, rfp *models.Rfp) (string, error)
	Finalize(ctx context.Context, id string, fin models.RfpFinalization) error
	MarkProcessing(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, message string) error
}

// TaskEnqueuer hands large uploads to the background worker.
type TaskEnqueuer interface {
	EnqueueProcess(ctx context.Context, rfpID, userID, path, filename, mime string) (taskID string, err error)
}

// UploadRequest is one file submission.
type UploadRequest struct {
	Filename string
	MIME     string
	Size     int64
	Reader   io.Reader
}

// SubmitResult reports the terminal (or handed-off) outcome of a submission.
type SubmitResult struct {
	Rfp    *models.Rfp
	State  SubmissionState
	TaskID string
	Next   string
}

// IntakeService runs the upload workflow: capability check, session check,
// record creation, content extraction, record finalization, navigation
// signal. At most one submission is in flight per instance; a second submit
// while one is running is rejected.
type IntakeService struct {
	config    *config.Config
	settings  SettingsReader
	store     RecordStore
	extractor ContentExtractor
	enqueuer  TaskEnqueuer
	metrics   *telemetry.Metrics

	mu       sync.Mutex
	inFlight bool
}

func NewIntakeService(cfg *config.Config, settings SettingsReader, store RecordStore, extractor ContentExtractor, enqueuer TaskEnqueuer, metrics *telemetry.Metrics) *IntakeService {
	return &IntakeService{
		config:    cfg,
		settings:  settings,
		store:     store,
		extractor: extractor,
		enqueuer:  enqueuer,
		metrics:   metrics,
	}
}

// Submit drives one submission from Selected to Done. Each failure converts
// into exactly one typed error and ends the attempt; the caller re-initiates
// with a fresh file choice.
func (s *IntakeService) Submit(ctx context.Context, sess *auth.Session, req *UploadRequest) (*SubmitResult, error) {
	if !s.acquire() {
		return nil, ErrSubmissionInFlight
	}
	defer s.release()

	// Selected -> Validating: local checks, no remote calls yet
	if err := s.validate(req); err != nil {
		return nil, err
	}

	// Validating -> Submitting, step 1: capability flag
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil || !settings.OpenAIKeyProvided {
		return nil, ErrMissingCredential
	}

	// Step 2: active session, passed in explicitly by the caller
	if sess == nil || sess.UserID == "" {
		return nil, ErrUnauthenticated
	}

	// Step 3: derive title, step 4: create the record
	rfp := &models.Rfp{
		ID:           uuid.NewString(),
		Title:        TitleFromFilename(req.Filename),
		FileType:     req.MIME,
		UserID:       sess.UserID,
		Size:         req.Size,
		OriginalName: req.Filename,
	}
	id, err := s.store.Insert(ctx, rfp)
	if err != nil {
		return nil, err
	}

	// The row exists from here on; any later failure leaves it in the
	// content-less sub-state for the reconciler rather than rolling back.
	storedPath, err := s.storeFile(id, req)
	if err != nil {
		s.store.MarkFailed(ctx, id, err.Error())
		return nil, &ProcessingError{RfpID: id, Err: err}
	}

	// Submitting -> Processing: hand off large files, process small ones
	// inline so the caller gets the terminal state in one round trip.
	if s.enqueuer != nil && req.Size > s.config.SyncProcessingLimit {
		taskID, err := s.enqueuer.EnqueueProcess(ctx, id, sess.UserID, storedPath, req.Filename, req.MIME)
		if err != nil {
			s.store.MarkFailed(ctx, id, err.Error())
			return nil, &ProcessingError{RfpID: id, Err: err}
		}
		logger.Info("rfp queued for processing", "rfp_id", id, "task_id", taskID, "size", req.Size)
		s.recordUploadAccepted(req.MIME, true)
		return &SubmitResult{Rfp: rfp, State: StateProcessing, TaskID: taskID, Next: NavTargetAnalysis}, nil
	}

	if err := s.process(ctx, rfp, storedPath, req); err != nil {
		return nil, err
	}

	s.recordUploadAccepted(req.MIME, false)
	return &SubmitResult{Rfp: rfp, State: StateDone, Next: NavTargetAnalysis}, nil
}

// process runs extraction and finalization for one stored upload. Shared
// with the worker and the reconciler.
func (s *IntakeService) process(ctx context.Context, rfp *models.Rfp, storedPath string, req *UploadRequest) error {
	start := time.Now()
	if err := s.store.MarkProcessing(ctx, rfp.ID); err != nil {
		return err
	}

	result, err := s.extractor.Extract(ctx, ExtractSource{
		Path:     storedPath,
		Filename: req.Filename,
		MIME:     req.MIME,
	})
	if err != nil {
		s.store.MarkFailed(ctx, rfp.ID, err.Error())
		s.recordProcessing(start, models.StatusFailed)
		if err == ErrProcessingTimeout {
			return err
		}
		return &ProcessingError{RfpID: rfp.ID, Err: err}
	}

	fin := models.RfpFinalization{
		Content:  result.Content,
		FilePath: RowFilePath(rfp.ID, req.Filename),
		FaissID:  rfp.ID,
	}
	if err := s.store.Finalize(ctx, rfp.ID, fin); err != nil {
		// Insert succeeded but finalization did not: the row stays in
		// the acknowledged content-less state until the reconciler
		// retries it.
		s.store.MarkFailed(ctx, rfp.ID, err.Error())
		s.recordProcessing(start, models.StatusFailed)
		return err
	}

	rfp.Content = result.Content
	rfp.FilePath = fin.FilePath
	rfp.FaissID = fin.FaissID
	rfp.Status = models.StatusCompleted
	s.recordProcessing(start, models.StatusCompleted)
	logger.Info("rfp processed", "rfp_id", rfp.ID, "method", result.Method, "chars", len(result.Content))
	return nil
}

// ProcessStored re-runs extraction and finalization for a row whose upload
// already sits on disk. Used by the worker and the reconciler.
func (s *IntakeService) ProcessStored(ctx context.Context, rfp *models.Rfp, storedPath, filename, mime string) error {
	return s.process(ctx, rfp, storedPath, &UploadRequest{Filename: filename, MIME: mime, Size: rfp.Size})
}

func (s *IntakeService) validate(req *UploadRequest) error {
	if req.Filename == "" {
		return &ValidationError{Field: "file", Reason: "no file provided"}
	}
	if !s.allowedType(req.MIME) {
		return &UnsupportedTypeError{FileType: req.MIME}
	}
	if req.Size > s.config.MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

func (s *IntakeService) allowedType(mime string) bool {
	for _, t := range s.config.AllowedTypes {
		if strings.TrimSpace(t) == mime {
			return true
		}
	}
	return false
}

// storeFile copies the upload under the storage dir mirroring the row's
// uploads/{id}/{filename} path.
func (s *IntakeService) storeFile(id string, req *UploadRequest) (string, error) {
	dir := filepath.Join(s.config.FileStorageDir, "uploads", id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(req.Filename))
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to open destination: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(req.Reader, s.config.MaxFileSize)); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return path, nil
}

// StoredFilePath resolves the on-disk location for a row's recorded path.
func (s *IntakeService) StoredFilePath(id, filename string) string {
	return filepath.Join(s.config.FileStorageDir, "uploads", id, filepath.Base(filename))
}

func (s *IntakeService) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

func (s *IntakeService) release() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

func (s *IntakeService) recordUploadAccepted(mime string, async bool) {
	if s.metrics != nil {
		s.metrics.RecordUploadAccepted(mime, async)
	}
}

func (s *IntakeService) recordProcessing(start time.Time, status string) {
	if s.metrics != nil {
		s.metrics.RecordProcessing(time.Since(start).Seconds(), status)
	}
}

// TitleFromFilename derives a display title: extension stripped, underscores
// replaced with spaces.
func TitleFromFilename(filename string) string {
	base := filepath.Base(filename)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return strings.ReplaceAll(base, "_", " ")
}

// RowFilePath is the synthetic path recorded on the row.
func RowFilePath(id, filename string) string {
	return fmt.Sprintf("uploads/%s/%s", id, filepath.Base(filename))
}
