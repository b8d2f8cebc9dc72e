package worker

import (
	"context"
	"fmt"

	"github.com/abduss/tribute/internal/queue"
)

// Processor handles one job type. Implementations must be idempotent: a job
// may run again after a crash or a retry.
type Processor interface {
	// JobType returns the queue job type handled by this processor.
	JobType() string
	Process(ctx context.Context, job *queue.Job) error
}

// FailureHandler is implemented by processors that need to react when a job
// is given up on.
type FailureHandler interface {
	OnFailure(ctx context.Context, job *queue.Job, err error)
}

// Dispatcher routes jobs to registered processors by job type.
type Dispatcher struct {
	processors map[string]Processor
}

// NewDispatcher returns a dispatcher with no processors.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{processors: map[string]Processor{}}
}

// Register routes jobs of p.JobType() to p, replacing any earlier processor.
func (d *Dispatcher) Register(p Processor) {
	d.processors[p.JobType()] = p
}

// Get returns the processor registered for job.Type.
func (d *Dispatcher) Get(job *queue.Job) (Processor, error) {
	p, ok := d.processors[job.Type]
	if !ok {
		return nil, fmt.Errorf("no processor registered for job type: %s", job.Type)
	}
	return p, nil
}
