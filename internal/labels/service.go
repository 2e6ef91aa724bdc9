package labels

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/partline/partline/jobs"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Create(ctx context.Context, token string, requestedBy int64, lineIDs []int64) (PrintJob, error)
	GetByToken(ctx context.Context, token string) (PrintJob, error)
}

// Enqueuer submits label render tasks to the queue.
type Enqueuer interface {
	EnqueueLabelGenerate(ctx context.Context, payload jobs.LabelGeneratePayload) (*asynq.TaskInfo, error)
}

// Service coordinates print job records and queueing.
type Service struct {
	repo     RepositoryPort
	enqueuer Enqueuer
}

// NewService builds Service.
func NewService(repo RepositoryPort, enqueuer Enqueuer) *Service {
	return &Service{repo: repo, enqueuer: enqueuer}
}

// ScheduleLines records a queued print job for the given receipt lines and
// hands it to the worker. Returns the job token the caller polls with.
func (s *Service) ScheduleLines(ctx context.Context, lineIDs []int64, actorID int64) (string, error) {
	if len(lineIDs) == 0 {
		return "", ErrNoLines
	}
	token := uuid.NewString()
	job, err := s.repo.Create(ctx, token, actorID, lineIDs)
	if err != nil {
		return "", err
	}
	if s.enqueuer == nil {
		return "", fmt.Errorf("labels: queue not configured")
	}
	if _, err := s.enqueuer.EnqueueLabelGenerate(ctx, jobs.LabelGeneratePayload{
		JobToken: job.Token,
		LineIDs:  lineIDs,
		ActorID:  actorID,
	}); err != nil {
		return "", fmt.Errorf("labels: enqueue: %w", err)
	}
	return job.Token, nil
}

// Get loads one print job by token.
func (s *Service) Get(ctx context.Context, token string) (PrintJob, error) {
	return s.repo.GetByToken(ctx, token)
}

// FilePath returns the stored PDF path for a ready job.
func (s *Service) FilePath(ctx context.Context, token string) (string, error) {
	job, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return "", err
	}
	if job.Status != StatusReady || job.FilePath == "" {
		return "", ErrNotReady
	}
	return job.FilePath, nil
}
