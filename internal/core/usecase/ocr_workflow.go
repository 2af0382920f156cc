package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
	"github.com/kirillkom/archive-assistant/internal/core/ports"
)

type workflowStep string

const (
	stepStartJob    workflowStep = "START_JOB"
	stepWait        workflowStep = "WAIT"
	stepCheckStatus workflowStep = "CHECK_STATUS"
	stepExtract     workflowStep = "EXTRACT"
	stepDone        workflowStep = "DONE"
)

// IngestObserver receives workflow telemetry. Implementations must be
// non-blocking.
type IngestObserver interface {
	JobFinished(status domain.JobStatus)
	PollCycles(count int)
}

// OCRWorkflow drives one ingest job to a terminal state. State is persisted
// after every transition, so the worker may crash or restart between polls
// and resume from the stored job. One workflow instance per document; a
// failure never touches sibling jobs.
type OCRWorkflow struct {
	jobs     ports.IngestJobStore
	ocr      ports.OCRService
	extract  *ExtractResultUseCase
	observer IngestObserver

	pollInterval time.Duration
	jobDeadline  time.Duration

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

func NewOCRWorkflow(
	jobs ports.IngestJobStore,
	ocr ports.OCRService,
	extract *ExtractResultUseCase,
	observer IngestObserver,
	pollInterval, jobDeadline time.Duration,
) *OCRWorkflow {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Minute
	}
	if jobDeadline <= 0 {
		jobDeadline = 2 * time.Hour
	}
	return &OCRWorkflow{
		jobs:         jobs,
		ocr:          ocr,
		extract:      extract,
		observer:     observer,
		pollInterval: pollInterval,
		jobDeadline:  jobDeadline,
		now:          func() time.Time { return time.Now().UTC() },
		wait:         waitTimer,
	}
}

// Run is idempotent: re-running a terminal job is a no-op, and a job whose
// remote side was already started resumes at the polling stage.
func (w *OCRWorkflow) Run(ctx context.Context, jobID string) error {
	job, err := w.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load ingest job: %w", err)
	}
	if job.Status.Terminal() {
		return nil
	}

	pollCycles := 0
	step := w.nextStep(job)

	for {
		switch step {
		case stepStartJob:
			remoteID, err := w.ocr.StartJob(ctx, job.SourceRef, job.Mode)
			if err != nil {
				return w.fail(ctx, job, fmt.Errorf("start ocr job: %w", err))
			}
			if err := w.jobs.SetRemoteJob(ctx, job.ID, remoteID); err != nil {
				return fmt.Errorf("persist remote job id: %w", err)
			}
			job.RemoteJobID = remoteID
			if err := w.mark(ctx, job, domain.JobInProgress, ""); err != nil {
				return err
			}
			step = stepWait

		case stepWait:
			if w.deadlineExceeded(job) {
				return w.fail(ctx, job, fmt.Errorf("ocr job exceeded %s ceiling", w.jobDeadline))
			}
			if err := w.wait(ctx, w.pollInterval); err != nil {
				return err
			}
			step = stepCheckStatus

		case stepCheckStatus:
			pollCycles++
			status, err := w.ocr.GetStatus(ctx, job.RemoteJobID)
			if err != nil {
				// A failed poll is not a failed job; the next cycle retries.
				slog.Warn("ocr_status_check_failed", "job_id", job.ID, "error", err)
				step = stepWait
				continue
			}

			switch status {
			case domain.JobSucceeded:
				step = stepExtract
			case domain.JobFailed, domain.JobPartialSuccess:
				// PARTIAL_SUCCESS is a hard failure; the distinct status is
				// preserved so partial ingestion can be revisited later.
				return w.finish(ctx, job, status, "ocr job did not fully succeed", pollCycles)
			default:
				if err := w.mark(ctx, job, domain.JobInProgress, ""); err != nil {
					return err
				}
				step = stepWait
			}

		case stepExtract:
			if _, err := w.extract.Extract(ctx, job); err != nil {
				if finishErr := w.finish(ctx, job, domain.JobFailed, err.Error(), pollCycles); finishErr != nil {
					return fmt.Errorf("%w; mark failed: %v", err, finishErr)
				}
				return err
			}
			return w.finish(ctx, job, domain.JobSucceeded, "", pollCycles)

		case stepDone:
			return nil
		}
	}
}

func (w *OCRWorkflow) nextStep(job *domain.IngestJob) workflowStep {
	switch {
	case job.Status.Terminal():
		return stepDone
	case job.RemoteJobID == "":
		return stepStartJob
	default:
		return stepWait
	}
}

func (w *OCRWorkflow) deadlineExceeded(job *domain.IngestJob) bool {
	return w.now().Sub(job.CreatedAt) > w.jobDeadline
}

func (w *OCRWorkflow) mark(ctx context.Context, job *domain.IngestJob, status domain.JobStatus, errMessage string) error {
	checkedAt := w.now()
	if err := w.jobs.UpdateStatus(ctx, job.ID, status, errMessage, checkedAt); err != nil {
		return fmt.Errorf("persist job status %s: %w", status, err)
	}
	job.Status = status
	job.Error = errMessage
	job.LastCheckedAt = checkedAt
	return nil
}

func (w *OCRWorkflow) finish(ctx context.Context, job *domain.IngestJob, status domain.JobStatus, errMessage string, pollCycles int) error {
	if err := w.mark(ctx, job, status, errMessage); err != nil {
		return err
	}
	if w.observer != nil {
		w.observer.JobFinished(status)
		w.observer.PollCycles(pollCycles)
	}
	slog.Info("ingest_job_finished",
		"job_id", job.ID,
		"status", string(status),
		"poll_cycles", pollCycles,
	)
	return nil
}

func (w *OCRWorkflow) fail(ctx context.Context, job *domain.IngestJob, cause error) error {
	if err := w.finish(ctx, job, domain.JobFailed, cause.Error(), 0); err != nil {
		return fmt.Errorf("%w; mark failed: %v", cause, err)
	}
	return cause
}

func waitTimer(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
