package labels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/partline/partline/internal/observability"
	"github.com/partline/partline/jobs"
)

// JobRepository is the subset of the repository the worker job needs.
type JobRepository interface {
	GetByToken(ctx context.Context, token string) (PrintJob, error)
	MarkProcessing(ctx context.Context, token string) error
	MarkReady(ctx context.Context, token, filePath string) error
	MarkFailed(ctx context.Context, token, reason string) error
}

// Notifier reports job completion back to the initiating user.
type Notifier interface {
	LabelJobReady(ctx context.Context, userID int64, token, url string) error
	LabelJobFailed(ctx context.Context, userID int64, token, reason string) error
}

// JobConfig wires dependencies required by the worker job.
type JobConfig struct {
	Repo       JobRepository
	Builder    *Builder
	Renderer   *Renderer
	Notifier   Notifier
	Metrics    *observability.Metrics
	StorageDir string
	BaseURL    string
	Logger     *slog.Logger
}

// Job processes label generation requests coming from the queue.
type Job struct {
	repo       JobRepository
	builder    *Builder
	renderer   *Renderer
	notifier   Notifier
	metrics    *observability.Metrics
	storageDir string
	baseURL    string
	logger     *slog.Logger
}

// NewJob constructs a Job handler.
func NewJob(cfg JobConfig) *Job {
	return &Job{
		repo:       cfg.Repo,
		builder:    cfg.Builder,
		renderer:   cfg.Renderer,
		notifier:   cfg.Notifier,
		metrics:    cfg.Metrics,
		storageDir: cfg.StorageDir,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     cfg.Logger,
	}
}

// Handle fulfils the asynq.HandlerFunc contract. Failure is terminal for a
// print job: the error is captured on the record and pushed to the user
// instead of retrying the task.
func (j *Job) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.repo == nil || j.builder == nil || j.renderer == nil {
		return fmt.Errorf("labels job not configured")
	}
	var payload jobs.LabelGeneratePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.JobToken == "" || len(payload.LineIDs) == 0 {
		return asynq.SkipRetry
	}
	job, err := j.repo.GetByToken(ctx, payload.JobToken)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return asynq.SkipRetry
		}
		return err
	}
	if job.Status == StatusReady {
		return nil
	}
	if err := j.repo.MarkProcessing(ctx, job.Token); err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			return nil
		}
		return err
	}

	labels, err := j.builder.Build(ctx, payload.LineIDs)
	if err != nil {
		return j.fail(ctx, job, err)
	}
	pdf, err := j.renderer.Render(ctx, labels)
	if err != nil {
		return j.fail(ctx, job, err)
	}
	path, err := j.save(job, pdf)
	if err != nil {
		return j.fail(ctx, job, err)
	}
	if err := j.repo.MarkReady(ctx, job.Token, path); err != nil {
		return err
	}
	if j.metrics != nil {
		j.metrics.CountLabelJob("ready")
	}
	if j.notifier != nil {
		url := fmt.Sprintf("%s/labels/files/%s", j.baseURL, job.Token)
		if err := j.notifier.LabelJobReady(ctx, job.RequestedBy, job.Token, url); err != nil {
			j.logger.Warn("label ready notification failed", slog.String("token", job.Token), slog.Any("error", err))
		}
	}
	j.logger.Info("labels ready", slog.String("token", job.Token), slog.String("file", path), slog.Int("labels", len(labels)))
	return nil
}

func (j *Job) fail(ctx context.Context, job PrintJob, cause error) error {
	_ = j.repo.MarkFailed(ctx, job.Token, cause.Error())
	if j.metrics != nil {
		j.metrics.CountLabelJob("failed")
	}
	if j.notifier != nil {
		if err := j.notifier.LabelJobFailed(ctx, job.RequestedBy, job.Token, cause.Error()); err != nil {
			j.logger.Warn("label failed notification failed", slog.String("token", job.Token), slog.Any("error", err))
		}
	}
	j.logger.Error("label job failed", slog.String("token", job.Token), slog.Any("error", cause))
	return asynq.SkipRetry
}

func (j *Job) save(job PrintJob, pdf []byte) (string, error) {
	dir := j.storageDir
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join(os.TempDir(), "labels")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("labels-%d-%d.pdf", job.RequestedBy, time.Now().Unix())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
