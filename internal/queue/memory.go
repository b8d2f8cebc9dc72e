package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue for single-node use and tests.
type MemoryQueue struct {
	mu          sync.Mutex
	nextID      int64
	jobs        map[int64]*memoryJob
	maxAttempts int
	lease       time.Duration
	now         func() time.Time
}

type memoryJob struct {
	Job
	lockedUntil time.Time
}

// NewMemoryQueue builds an empty queue.
func NewMemoryQueue(maxAttempts int, lease time.Duration) *MemoryQueue {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &MemoryQueue{
		jobs:        make(map[int64]*memoryJob),
		maxAttempts: maxAttempts,
		lease:       lease,
		now:         time.Now,
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, jobType string, payload any) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("encode payload: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	now := q.now()
	job := &memoryJob{Job: Job{
		ID:          q.nextID,
		Type:        jobType,
		Payload:     raw,
		State:       StatePending,
		MaxAttempts: q.maxAttempts,
		RunAt:       now,
		CreatedAt:   now,
	}}
	q.jobs[job.ID] = job
	return job.Job, nil
}

func (q *MemoryQueue) Dequeue(context.Context) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var ready []*memoryJob
	for _, j := range q.jobs {
		switch {
		case j.State == StatePending && !j.RunAt.After(now):
			ready = append(ready, j)
		case j.State == StateRunning && j.lockedUntil.Before(now) && j.Attempts < j.MaxAttempts:
			ready = append(ready, j)
		}
	}
	if len(ready) == 0 {
		return nil, nil
	}

	sort.Slice(ready, func(a, b int) bool {
		if !ready[a].RunAt.Equal(ready[b].RunAt) {
			return ready[a].RunAt.Before(ready[b].RunAt)
		}
		return ready[a].ID < ready[b].ID
	})

	j := ready[0]
	j.State = StateRunning
	j.Attempts++
	j.lockedUntil = now.Add(q.lease)

	out := j.Job
	return &out, nil
}

func (q *MemoryQueue) Complete(_ context.Context, id int64) error {
	return q.update(id, func(j *memoryJob) {
		j.State = StateDone
	})
}

func (q *MemoryQueue) Retry(_ context.Context, id int64, runAt time.Time, reason string) error {
	return q.update(id, func(j *memoryJob) {
		j.State = StatePending
		j.RunAt = runAt
		j.LastError = reason
	})
}

func (q *MemoryQueue) Fail(_ context.Context, id int64, reason string) error {
	return q.update(id, func(j *memoryJob) {
		j.State = StateFailed
		j.LastError = reason
	})
}

func (q *MemoryQueue) ReapExpired(context.Context) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var reaped []Job
	for _, j := range q.jobs {
		if j.State != StateRunning || !j.lockedUntil.Before(now) || j.Attempts < j.MaxAttempts {
			continue
		}
		j.State = StateFailed
		j.LastError = ErrLeaseExpired.Error()
		j.lockedUntil = time.Time{}
		reaped = append(reaped, j.Job)
	}
	sort.Slice(reaped, func(a, b int) bool { return reaped[a].ID < reaped[b].ID })
	return reaped, nil
}

// Get returns a snapshot of a job.
func (q *MemoryQueue) Get(id int64) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return j.Job, nil
}

// Jobs returns snapshots of every job ordered by id.
func (q *MemoryQueue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, j.Job)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

func (q *MemoryQueue) update(id int64, fn func(*memoryJob)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	fn(j)
	j.lockedUntil = time.Time{}
	return nil
}
