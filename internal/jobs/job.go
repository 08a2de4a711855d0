// Package jobs discovers input tables, decides which ones still need work and
// records who is working on them.
package jobs

import (
	"context"
	"time"
)

// Job is one input table and the output table it produces.
type Job struct {
	Name       string
	InputPath  string
	OutputPath string
}

type Status string

const (
	StatusPending Status = "pending"
	StatusClaimed Status = "claimed"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Record is the stored state of one job.
type Record struct {
	Name      string
	Status    Status
	ClaimedAt time.Time
	UpdatedAt time.Time
	Records   int
	Error     string
}

// Store tracks job status across runs and processes.
//
// Claim must be race-free: of two concurrent callers for the same job, at most
// one gets true. A job whose output file exists is done no matter what the
// store says.
type Store interface {
	Status(ctx context.Context, job Job) (Record, error)
	Claim(ctx context.Context, job Job) (bool, error)
	Complete(ctx context.Context, job Job, records int) error
	Fail(ctx context.Context, job Job, cause error) error
	List(ctx context.Context) ([]Record, error)
}
