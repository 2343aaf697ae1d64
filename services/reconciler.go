package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"rfp-intake-platform/internal/config"
	"rfp-intake-platform/internal/logger"
)

const reconcileBatchSize = 20

// Reconciler re-drives rows whose extraction finished but whose
// finalization write never landed. It runs on a cron schedule and picks
// up anything stuck past the configured deadline.
type Reconciler struct {
	config    *config.Config
	store     *RfpStore
	intake    *IntakeService
	scheduler *gocron.Scheduler
}

func NewReconciler(cfg *config.Config, store *RfpStore, intake *IntakeService) *Reconciler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Reconciler{
		config:    cfg,
		store:     store,
		intake:    intake,
		scheduler: s,
	}
}

// Start registers the sweep job and begins running it asynchronously.
func (r *Reconciler) Start() error {
	_, err := r.scheduler.Cron(r.config.ReconcileCron).Tag("finalize-sweep").Do(r.sweep)
	if err != nil {
		return err
	}
	r.scheduler.StartAsync()
	logger.Info("finalization reconciler started", "cron", r.config.ReconcileCron)
	return nil
}

func (r *Reconciler) Stop() {
	r.scheduler.Stop()
}

func (r *Reconciler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deadline := time.Now().Add(-time.Duration(r.config.ReconcileDeadline) * time.Second)
	stuck, err := r.store.FindStuck(ctx, deadline, reconcileBatchSize)
	if err != nil {
		logger.Error("reconciler sweep failed", "error", err)
		return
	}
	if len(stuck) == 0 {
		return
	}

	logger.Info("reconciler found stuck rows", "count", len(stuck))
	for i := range stuck {
		rfp := &stuck[i]
		// Count the attempt before reprocessing so a row cannot loop
		// forever when the file is permanently unreadable.
		if err := r.store.IncrementReconcileAttempts(ctx, rfp.ID); err != nil {
			logger.Error("reconciler attempt count failed", "rfp_id", rfp.ID, "error", err)
			continue
		}
		path := r.intake.StoredFilePath(rfp.ID, rfp.OriginalName)
		if err := r.intake.ProcessStored(ctx, rfp, path, rfp.OriginalName, rfp.FileType); err != nil {
			logger.Error("reconciler reprocess failed", "rfp_id", rfp.ID, "error", err)
			continue
		}
		logger.Info("reconciler recovered rfp", "rfp_id", rfp.ID)
	}
}
