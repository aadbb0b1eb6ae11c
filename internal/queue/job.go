package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/services"
	"github.com/desertthunder/songmigrate/internal/shared"
)

// Job is one queued transfer request.
type Job struct {
	Handle      string                 `json:"handle"`
	SessionID   string                 `json:"session_id"`
	PlaylistIDs []string               `json:"playlist_ids"`
	Options     models.TransferOptions `json:"options"`
	EnqueuedAt  time.Time              `json:"enqueued_at"`
}

// Validate checks the job and normalizes its options.
func (j *Job) Validate() error {
	if j.Handle == "" {
		return fmt.Errorf("%w: job handle", shared.ErrMissingArgument)
	}
	if err := services.ValidateSessionID(j.SessionID); err != nil {
		return err
	}
	if len(j.PlaylistIDs) == 0 {
		return fmt.Errorf("%w: at least one playlist id is required", shared.ErrMissingArgument)
	}
	for _, id := range j.PlaylistIDs {
		if id == "" {
			return fmt.Errorf("%w: empty playlist id", shared.ErrInvalidArgument)
		}
	}
	if err := j.Options.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return nil
}

func encodeJob(j Job) ([]byte, error) {
	return json.Marshal(j)
}

func decodeJob(body []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(body, &j); err != nil {
		return Job{}, fmt.Errorf("%w: malformed job: %v", shared.ErrInvalidInput, err)
	}
	return j, nil
}

// Delivery is a received job with its acknowledgement callbacks.
type Delivery struct {
	Job  Job
	Ack  func() error
	Nack func(requeue bool) error
}

// Publisher enqueues jobs.
type Publisher interface {
	Publish(ctx context.Context, job Job) error
}

// Consumer streams deliveries until ctx is done or the broker closes.
type Consumer interface {
	Consume(ctx context.Context) (<-chan Delivery, error)
}
