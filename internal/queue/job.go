package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle position of a job.
type State string

const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// DeriveMediaJob generates derivatives for one media item.
const DeriveMediaJob = "media.derive"

// DeriveMediaPayload carries only the media id; workers reload everything else.
type DeriveMediaPayload struct {
	MediaID uuid.UUID `json:"media_id"`
}

var (
	// ErrJobNotFound signals an unknown job id.
	ErrJobNotFound = errors.New("job not found")
	// ErrLeaseExpired is recorded on a job whose worker stopped renewing it
	// during the final attempt, typically a crash.
	ErrLeaseExpired = errors.New("lease expired on final attempt")
)

// Job is a unit of asynchronous work.
type Job struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	State       State           `json:"state"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	RunAt       time.Time       `json:"run_at"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Decode unmarshals the payload into v.
func (j Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Type, err)
	}
	return nil
}

// Queue stores jobs until a worker leases them. Attempts is incremented when
// a job is dequeued, so a running job's Attempts is its current attempt.
type Queue interface {
	Enqueue(ctx context.Context, jobType string, payload any) (Job, error)
	// Dequeue leases the next runnable job, returning nil when none is ready.
	Dequeue(ctx context.Context) (*Job, error)
	Complete(ctx context.Context, id int64) error
	Retry(ctx context.Context, id int64, runAt time.Time, reason string) error
	Fail(ctx context.Context, id int64, reason string) error
	// ReapExpired fails running jobs whose lease lapsed on their final
	// attempt and returns them. Dequeue never leases such jobs again.
	ReapExpired(ctx context.Context) ([]Job, error)
}
