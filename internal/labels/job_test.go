package labels

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/partline/partline/jobs"
)

type memoryJobRepo struct {
	jobs map[string]*PrintJob
}

func (r *memoryJobRepo) GetByToken(_ context.Context, token string) (PrintJob, error) {
	job, ok := r.jobs[token]
	if !ok {
		return PrintJob{}, ErrJobNotFound
	}
	return *job, nil
}

func (r *memoryJobRepo) MarkProcessing(_ context.Context, token string) error {
	job := r.jobs[token]
	if job.Status != StatusQueued {
		return ErrInvalidStatus
	}
	job.Status = StatusProcessing
	return nil
}

func (r *memoryJobRepo) MarkReady(_ context.Context, token, filePath string) error {
	job := r.jobs[token]
	job.Status = StatusReady
	job.FilePath = filePath
	return nil
}

func (r *memoryJobRepo) MarkFailed(_ context.Context, token, reason string) error {
	job := r.jobs[token]
	job.Status = StatusFailed
	job.ErrorMessage = reason
	return nil
}

type captureNotifier struct {
	readyUser  int64
	readyURL   string
	failedUser int64
	reason     string
}

func (n *captureNotifier) LabelJobReady(_ context.Context, userID int64, _ string, url string) error {
	n.readyUser, n.readyURL = userID, url
	return nil
}

func (n *captureNotifier) LabelJobFailed(_ context.Context, userID int64, _ string, reason string) error {
	n.failedUser, n.reason = userID, reason
	return nil
}

func newLabelTask(t *testing.T, payload jobs.LabelGeneratePayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(jobs.TaskTypeLabelGenerate, data)
}

func newTestJob(t *testing.T, repo JobRepository, source RowSource, client PDFClient, notifier Notifier) *Job {
	t.Helper()
	renderer, err := NewRenderer(client)
	require.NoError(t, err)
	return NewJob(JobConfig{
		Repo:       repo,
		Builder:    NewBuilder(source),
		Renderer:   renderer,
		Notifier:   notifier,
		StorageDir: t.TempDir(),
		BaseURL:    "http://example.test",
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestJobRendersAndNotifies(t *testing.T) {
	repo := &memoryJobRepo{jobs: map[string]*PrintJob{
		"tok-1": {Token: "tok-1", RequestedBy: 5, Status: StatusQueued},
	}}
	source := &stubSource{rows: []Label{{Code: "RCPT-1", PartNumber: "PN-1", Batch: "BATCH-1", Quantity: 2}}}
	notifier := &captureNotifier{}
	job := newTestJob(t, repo, source, &stubPDF{}, notifier)

	err := job.Handle(context.Background(), newLabelTask(t, jobs.LabelGeneratePayload{JobToken: "tok-1", LineIDs: []int64{1}, ActorID: 5}))
	require.NoError(t, err)
	require.Equal(t, StatusReady, repo.jobs["tok-1"].Status)
	require.NotEmpty(t, repo.jobs["tok-1"].FilePath)
	require.Equal(t, int64(5), notifier.readyUser)
	require.Contains(t, notifier.readyURL, "/labels/files/tok-1")
}

type failingPDF struct{}

func (failingPDF) RenderHTML(_ context.Context, _ string) ([]byte, error) {
	return nil, errors.New("converter down")
}

func TestJobFailureIsTerminalAndNotified(t *testing.T) {
	repo := &memoryJobRepo{jobs: map[string]*PrintJob{
		"tok-1": {Token: "tok-1", RequestedBy: 5, Status: StatusQueued},
	}}
	source := &stubSource{rows: []Label{{Code: "RCPT-1", Batch: "BATCH-1"}}}
	notifier := &captureNotifier{}
	job := newTestJob(t, repo, source, failingPDF{}, notifier)

	err := job.Handle(context.Background(), newLabelTask(t, jobs.LabelGeneratePayload{JobToken: "tok-1", LineIDs: []int64{1}, ActorID: 5}))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Equal(t, StatusFailed, repo.jobs["tok-1"].Status)
	require.Contains(t, repo.jobs["tok-1"].ErrorMessage, "converter down")
	require.Equal(t, int64(5), notifier.failedUser)
}

func TestJobSkipsBadPayloadAndFinishedJobs(t *testing.T) {
	repo := &memoryJobRepo{jobs: map[string]*PrintJob{
		"done": {Token: "done", RequestedBy: 5, Status: StatusReady},
	}}
	source := &stubSource{rows: []Label{{Code: "RCPT-1", Batch: "BATCH-1"}}}
	job := newTestJob(t, repo, source, &stubPDF{}, nil)

	err := job.Handle(context.Background(), asynq.NewTask(jobs.TaskTypeLabelGenerate, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), newLabelTask(t, jobs.LabelGeneratePayload{JobToken: "done", LineIDs: []int64{1}}))
	require.NoError(t, err)
	require.Equal(t, StatusReady, repo.jobs["done"].Status)

	err = job.Handle(context.Background(), newLabelTask(t, jobs.LabelGeneratePayload{JobToken: "missing", LineIDs: []int64{1}}))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
