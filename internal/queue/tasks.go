package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"rfp-intake-platform/internal/logger"
	"rfp-intake-platform/models"
	"rfp-intake-platform/services"
)

const TaskProcessRFP = "rfp:process"

type RfpProcessPayload struct {
	RfpID    string `json:"rfp_id"`
	UserID   string `json:"user_id"`
	FilePath string `json:"file_path"`
	Filename string `json:"filename"`
	MIME     string `json:"mime"`
}

func NewRfpProcessTask(rfpID, userID, filePath, filename, mime string) (*asynq.Task, error) {
	payload, err := json.Marshal(RfpProcessPayload{
		RfpID:    rfpID,
		UserID:   userID,
		FilePath: filePath,
		Filename: filename,
		MIME:     mime,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskProcessRFP,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// QueueEnqueuer adapts the asynq client to the intake service.
type QueueEnqueuer struct {
	client *asynq.Client
}

func NewQueueEnqueuer(client *asynq.Client) *QueueEnqueuer {
	return &QueueEnqueuer{client: client}
}

func (q *QueueEnqueuer) EnqueueProcess(ctx context.Context, rfpID, userID, path, filename, mime string) (string, error) {
	task, err := NewRfpProcessTask(rfpID, userID, path, filename, mime)
	if err != nil {
		return "", err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// TaskProcessor runs queued extraction jobs in the worker.
type TaskProcessor struct {
	store  *services.RfpStore
	intake *services.IntakeService
}

func NewTaskProcessor(store *services.RfpStore, intake *services.IntakeService) *TaskProcessor {
	return &TaskProcessor{store: store, intake: intake}
}

func (p *TaskProcessor) ProcessRFP(ctx context.Context, t *asynq.Task) error {
	var payload RfpProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("processing rfp", "rfp_id", payload.RfpID, "file", payload.Filename)

	rfp, err := p.store.Get(ctx, payload.RfpID, payload.UserID)
	if err != nil {
		return fmt.Errorf("load rfp %s: %w", payload.RfpID, err)
	}
	if rfp == nil {
		logger.Warn("queued rfp no longer exists, dropping task", "rfp_id", payload.RfpID)
		return nil
	}
	if rfp.Status == models.StatusCompleted {
		// Retried task whose earlier attempt already finished.
		return nil
	}

	if err := p.intake.ProcessStored(ctx, rfp, payload.FilePath, payload.Filename, payload.MIME); err != nil {
		logger.Error("rfp processing failed", "rfp_id", payload.RfpID, "error", err)
		return err
	}

	logger.Info("rfp processing complete", "rfp_id", payload.RfpID)
	return nil
}
