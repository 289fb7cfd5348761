package app

import (
	"context"
	"errors"

	json "github.com/goccy/go-json"
)

// JobsQueue is the Redis list the worker pops from.
const JobsQueue = "jobs"

// JobRecalculateSLA asks the worker to recompute due dates of open tickets.
const JobRecalculateSLA = "recalculate_sla"

// Job is the envelope pushed onto JobsQueue.
type Job struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

var errNoQueue = errors.New("job queue not configured")

// Enqueue pushes a job for the worker.
func (a *App) Enqueue(ctx context.Context, typ string, data interface{}) error {
	if a.Q == nil {
		return errNoQueue
	}
	b, err := json.Marshal(Job{Type: typ, Data: data})
	if err != nil {
		return err
	}
	return a.Q.RPush(ctx, JobsQueue, b).Err()
}
