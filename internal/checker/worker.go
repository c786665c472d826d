package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kyuho/barun/internal/storage"
)

const (
	defaultWorkerPoll     = 3 * time.Second
	defaultStaleJobCutoff = time.Hour
)

// errJobCancelled aborts chunk processing when the user cancelled the job.
var errJobCancelled = errors.New("job cancelled")

// Worker drains the check job queue, one job at a time.
type Worker struct {
	store   *storage.Store
	service *Service
	poll    time.Duration
	stale   time.Duration
	logger  *slog.Logger
}

// NewWorker creates a Worker. Non-positive intervals select the defaults
// (3s queue poll, 1h stale-job cutoff).
func NewWorker(store *storage.Store, service *Service, pollInterval, staleCutoff time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = defaultWorkerPoll
	}
	if staleCutoff <= 0 {
		staleCutoff = defaultStaleJobCutoff
	}
	return &Worker{
		store:   store,
		service: service,
		poll:    pollInterval,
		stale:   staleCutoff,
		logger:  slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if n, err := w.store.FailStaleCheckJobs(time.Now().UTC().Add(-w.stale)); err != nil {
			w.logger.Error("failing stale jobs", "error", err)
		} else if n > 0 {
			w.logger.Warn("marked stale check jobs as failed", "count", n)
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single check job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextCheckJob()
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		if errors.Is(err, errJobCancelled) {
			w.logger.Info("check job cancelled", "job_id", job.ID)
			return true, nil
		}
		w.logger.Warn("check job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailCheckJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.CheckJob) error {
	p, err := w.service.registry.Resolve(job.Provider)
	if err != nil {
		return fmt.Errorf("resolving provider %q: %w", job.Provider, err)
	}

	result, err := w.service.process(ctx, p, job.Text, func(done, total int) error {
		if err := w.store.UpdateCheckJobProgress(job.ID, done, total); err != nil {
			w.logger.Error("updating job progress", "job_id", job.ID, "error", err)
		}
		// Re-read status so a user cancel takes effect between chunks.
		status, err := w.store.CheckJobStatus(job.ID)
		if err != nil {
			return fmt.Errorf("checking job status: %w", err)
		}
		if status == storage.JobCancelled {
			return errJobCancelled
		}
		return nil
	})
	if err != nil {
		return err
	}

	resultID, err := w.store.SaveCheckResult(result)
	if err != nil {
		return fmt.Errorf("saving result for job %d: %w", job.ID, err)
	}
	if err := w.store.CompleteCheckJob(job.ID, resultID); err != nil {
		// A cancel that landed after the final chunk leaves the job terminal;
		// the stored result stays available through the cache.
		if errors.Is(err, storage.ErrNotFound) {
			return errJobCancelled
		}
		return fmt.Errorf("completing job %d: %w", job.ID, err)
	}
	w.logger.Info("check job completed", "job_id", job.ID, "chunks", result.ChunkCount)
	return nil
}
