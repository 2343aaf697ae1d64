package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"rfp-intake-platform/internal/auth"
	"rfp-intake-platform/internal/config"
	"rfp-intake-platform/models"
)

type fakeSettings struct {
	settings *models.AppSettings
	err      error
	calls    int
}

func (f *fakeSettings) Get(ctx context.Context) (*models.AppSettings, error) {
	f.calls++
	return f.settings, f.err
}

type fakeStore struct {
	inserts     int
	finalizes   int
	processing  int
	failures    int
	insertErr   error
	finalizeErr error
	lastRfp     *models.Rfp
	lastFin     models.RfpFinalization
	lastFailMsg string
}

func (f *fakeStore) Insert(ctx context.Context, rfp *models.Rfp) (string, error) {
	f.inserts++
	f.lastRfp = rfp
	if f.insertErr != nil {
		return "", f.insertErr
	}
	return rfp.ID, nil
}

func (f *fakeStore) Finalize(ctx context.Context, id string, fin models.RfpFinalization) error {
	f.finalizes++
	f.lastFin = fin
	return f.finalizeErr
}

func (f *fakeStore) MarkProcessing(ctx context.Context, id string) error {
	f.processing++
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, id, message string) error {
	f.failures++
	f.lastFailMsg = message
	return nil
}

type fakeExtractor struct {
	content string
	err     error
	calls   int
}

func (f *fakeExtractor) Extract(ctx context.Context, src ExtractSource) (*ExtractionResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ExtractionResult{Content: f.content, Method: "fake"}, nil
}

type fakeEnqueuer struct {
	calls  int
	taskID string
	err    error
}

func (f *fakeEnqueuer) EnqueueProcess(ctx context.Context, rfpID, userID, path, filename, mime string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.taskID, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		MaxFileSize:         10 * 1024 * 1024,
		AllowedTypes:        []string{MimePDF, MimeDocx, MimeText},
		FileStorageDir:      t.TempDir(),
		SyncProcessingLimit: 2 * 1024 * 1024,
	}
}

func keyedSettings() *models.AppSettings {
	return &models.AppSettings{UseFaiss: true, UseSupabase: true, OpenAIKeyProvided: true}
}

func testSession() *auth.Session {
	return &auth.Session{UserID: "user-1", Email: "user@example.com"}
}

func uploadRequest(filename, mime, content string) *UploadRequest {
	return &UploadRequest{
		Filename: filename,
		MIME:     mime,
		Size:     int64(len(content)),
		Reader:   strings.NewReader(content),
	}
}

func TestSubmitHappyPath(t *testing.T) {
	settings := &fakeSettings{settings: keyedSettings()}
	store := &fakeStore{}
	extractor := &fakeExtractor{content: "section one requirements"}
	svc := NewIntakeService(testConfig(t), settings, store, extractor, &fakeEnqueuer{}, nil)

	result, err := svc.Submit(context.Background(), testSession(), uploadRequest("Annual_Report_2024.pdf", MimePDF, "%PDF fake"))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if result.State != StateDone {
		t.Fatalf("state = %s, want %s", result.State, StateDone)
	}
	if result.Next != NavTargetAnalysis {
		t.Fatalf("next = %q, want %q", result.Next, NavTargetAnalysis)
	}
	if result.Rfp.Title != "Annual Report 2024" {
		t.Fatalf("title = %q, want %q", result.Rfp.Title, "Annual Report 2024")
	}
	if store.inserts != 1 || store.finalizes != 1 {
		t.Fatalf("inserts=%d finalizes=%d, want 1/1", store.inserts, store.finalizes)
	}

	wantPath := "uploads/" + result.Rfp.ID + "/Annual_Report_2024.pdf"
	if store.lastFin.FilePath != wantPath {
		t.Fatalf("file_path = %q, want %q", store.lastFin.FilePath, wantPath)
	}
	if store.lastFin.FaissID != result.Rfp.ID {
		t.Fatalf("faiss_id = %q, want row id %q", store.lastFin.FaissID, result.Rfp.ID)
	}
	if store.lastFin.Content != "section one requirements" {
		t.Fatalf("content = %q", store.lastFin.Content)
	}
}

func TestSubmitUnsupportedTypeMakesNoCalls(t *testing.T) {
	settings := &fakeSettings{settings: keyedSettings()}
	store := &fakeStore{}
	svc := NewIntakeService(testConfig(t), settings, store, &fakeExtractor{}, &fakeEnqueuer{}, nil)

	_, err := svc.Submit(context.Background(), testSession(), uploadRequest("report.exe", "application/x-msdownload", "MZ"))

	var typeErr *UnsupportedTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("err = %v, want UnsupportedTypeError", err)
	}
	if settings.calls != 0 {
		t.Fatalf("settings calls = %d, want 0", settings.calls)
	}
	if store.inserts != 0 {
		t.Fatalf("inserts = %d, want 0", store.inserts)
	}
}

func TestSubmitTooLargeMakesNoCalls(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxFileSize = 4
	settings := &fakeSettings{settings: keyedSettings()}
	store := &fakeStore{}
	svc := NewIntakeService(cfg, settings, store, &fakeExtractor{}, &fakeEnqueuer{}, nil)

	_, err := svc.Submit(context.Background(), testSession(), uploadRequest("big.pdf", MimePDF, "content"))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
	if settings.calls != 0 || store.inserts != 0 {
		t.Fatalf("settings=%d inserts=%d, want 0/0", settings.calls, store.inserts)
	}
}

func TestSubmitMissingKeyStopsBeforeInsert(t *testing.T) {
	cases := []struct {
		name     string
		settings *models.AppSettings
	}{
		{"no row saved", nil},
		{"row without key", &models.AppSettings{UseFaiss: true, UseSupabase: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{}
			svc := NewIntakeService(testConfig(t), &fakeSettings{settings: tc.settings}, store, &fakeExtractor{}, &fakeEnqueuer{}, nil)

			_, err := svc.Submit(context.Background(), testSession(), uploadRequest("doc.pdf", MimePDF, "x"))
			if !errors.Is(err, ErrMissingCredential) {
				t.Fatalf("err = %v, want ErrMissingCredential", err)
			}
			if store.inserts != 0 {
				t.Fatalf("inserts = %d, want 0", store.inserts)
			}
		})
	}
}

func TestSubmitNoSessionStopsBeforeInsert(t *testing.T) {
	store := &fakeStore{}
	svc := NewIntakeService(testConfig(t), &fakeSettings{settings: keyedSettings()}, store, &fakeExtractor{}, &fakeEnqueuer{}, nil)

	for _, sess := range []*auth.Session{nil, {}} {
		_, err := svc.Submit(context.Background(), sess, uploadRequest("doc.pdf", MimePDF, "x"))
		if !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("err = %v, want ErrUnauthenticated", err)
		}
	}
	if store.inserts != 0 {
		t.Fatalf("inserts = %d, want 0", store.inserts)
	}
}

func TestSubmitInsertFailureEndsAttempt(t *testing.T) {
	store := &fakeStore{insertErr: &StoreError{Op: "insert", Message: "duplicate key"}}
	extractor := &fakeExtractor{}
	svc := NewIntakeService(testConfig(t), &fakeSettings{settings: keyedSettings()}, store, extractor, &fakeEnqueuer{}, nil)

	_, err := svc.Submit(context.Background(), testSession(), uploadRequest("doc.pdf", MimePDF, "x"))

	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("err = %v, want StoreError", err)
	}
	if extractor.calls != 0 {
		t.Fatalf("extractor calls = %d, want 0", extractor.calls)
	}
	if store.finalizes != 0 {
		t.Fatalf("finalizes = %d, want 0", store.finalizes)
	}
}

func TestSubmitExtractionFailureMarksRowFailed(t *testing.T) {
	store := &fakeStore{}
	extractor := &fakeExtractor{err: errors.New("corrupt file")}
	svc := NewIntakeService(testConfig(t), &fakeSettings{settings: keyedSettings()}, store, extractor, &fakeEnqueuer{}, nil)

	_, err := svc.Submit(context.Background(), testSession(), uploadRequest("doc.pdf", MimePDF, "x"))

	var procErr *ProcessingError
	if !errors.As(err, &procErr) {
		t.Fatalf("err = %v, want ProcessingError", err)
	}
	if store.inserts != 1 {
		t.Fatalf("inserts = %d, want 1", store.inserts)
	}
	if store.failures != 1 {
		t.Fatalf("failures = %d, want 1", store.failures)
	}
	if store.finalizes != 0 {
		t.Fatalf("finalizes = %d, want 0", store.finalizes)
	}
}

func TestSubmitTimeoutPassesThrough(t *testing.T) {
	store := &fakeStore{}
	svc := NewIntakeService(testConfig(t), &fakeSettings{settings: keyedSettings()}, store, &fakeExtractor{err: ErrProcessingTimeout}, &fakeEnqueuer{}, nil)

	_, err := svc.Submit(context.Background(), testSession(), uploadRequest("doc.pdf", MimePDF, "x"))
	if !errors.Is(err, ErrProcessingTimeout) {
		t.Fatalf("err = %v, want ErrProcessingTimeout", err)
	}
	if store.failures != 1 {
		t.Fatalf("failures = %d, want 1", store.failures)
	}
}

func TestSubmitFinalizeFailureKeepsRow(t *testing.T) {
	store := &fakeStore{finalizeErr: &StoreError{Op: "finalize", Message: "write conflict"}}
	svc := NewIntakeService(testConfig(t), &fakeSettings{settings: keyedSettings()}, store, &fakeExtractor{content: "text"}, &fakeEnqueuer{}, nil)

	_, err := svc.Submit(context.Background(), testSession(), uploadRequest("doc.pdf", MimePDF, "x"))
	if err == nil {
		t.Fatal("expected finalize error")
	}
	// Row was inserted and stays for the reconciler; no rollback path exists.
	if store.inserts != 1 {
		t.Fatalf("inserts = %d, want 1", store.inserts)
	}
	if store.failures != 1 {
		t.Fatalf("failures = %d, want 1", store.failures)
	}
}

func TestSubmitLargeFileGoesAsync(t *testing.T) {
	cfg := testConfig(t)
	cfg.SyncProcessingLimit = 4
	store := &fakeStore{}
	extractor := &fakeExtractor{content: "never used"}
	enqueuer := &fakeEnqueuer{taskID: "task-42"}
	svc := NewIntakeService(cfg, &fakeSettings{settings: keyedSettings()}, store, extractor, enqueuer, nil)

	result, err := svc.Submit(context.Background(), testSession(), uploadRequest("big.pdf", MimePDF, "larger than limit"))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.State != StateProcessing {
		t.Fatalf("state = %s, want %s", result.State, StateProcessing)
	}
	if result.TaskID != "task-42" {
		t.Fatalf("task id = %q", result.TaskID)
	}
	if result.Next != NavTargetAnalysis {
		t.Fatalf("next = %q, want %q; the queued response carries the same navigation target", result.Next, NavTargetAnalysis)
	}
	if enqueuer.calls != 1 {
		t.Fatalf("enqueue calls = %d, want 1", enqueuer.calls)
	}
	if extractor.calls != 0 {
		t.Fatalf("extractor calls = %d, want 0 for async path", extractor.calls)
	}
}

func TestSubmitRejectsConcurrentAttempt(t *testing.T) {
	svc := NewIntakeService(testConfig(t), &fakeSettings{settings: keyedSettings()}, &fakeStore{}, &fakeExtractor{}, &fakeEnqueuer{}, nil)

	if !svc.acquire() {
		t.Fatal("first acquire should succeed")
	}
	_, err := svc.Submit(context.Background(), testSession(), uploadRequest("doc.pdf", MimePDF, "x"))
	if !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("err = %v, want ErrSubmissionInFlight", err)
	}
	svc.release()

	if _, err := svc.Submit(context.Background(), testSession(), uploadRequest("doc.pdf", MimePDF, "x")); err != nil {
		t.Fatalf("submit after release failed: %v", err)
	}
}

func TestTitleFromFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Annual_Report_2024.pdf", "Annual Report 2024"},
		{"proposal.docx", "proposal"},
		{"no_extension", "no extension"},
		{"multi.part.name.txt", "multi.part.name"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		if got := TitleFromFilename(tc.in); got != tc.want {
			t.Errorf("TitleFromFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRowFilePath(t *testing.T) {
	got := RowFilePath("abc-123", "dir/Doc.pdf")
	if got != "uploads/abc-123/Doc.pdf" {
		t.Fatalf("RowFilePath = %q", got)
	}
}
