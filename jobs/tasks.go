package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeLabelGenerate renders receipt line labels into a PDF.
	TaskTypeLabelGenerate = "labels:generate"
	// TaskTypePushSend delivers a web push notification to one user.
	TaskTypePushSend = "push:send"
)

// LabelGeneratePayload identifies the print job the worker should render.
type LabelGeneratePayload struct {
	JobToken string  `json:"job_token"`
	LineIDs  []int64 `json:"line_ids"`
	ActorID  int64   `json:"actor_id"`
}

// NewLabelGenerateTask constructs an Asynq task.
func NewLabelGenerateTask(payload LabelGeneratePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLabelGenerate, data), nil
}

// PushSendPayload describes one notification for one user.
type PushSendPayload struct {
	UserID int64  `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"url,omitempty"`
}

// NewPushSendTask constructs an Asynq task.
func NewPushSendTask(payload PushSendPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePushSend, data), nil
}
