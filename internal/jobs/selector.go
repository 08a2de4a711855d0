package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Selector picks the jobs a run should process.
type Selector struct {
	InputDir  string
	OutputDir string
	// Store is consulted for claimed and done jobs. Nil means output
	// existence alone decides.
	Store Store
	// Now defaults to time.Now.
	Now func() time.Time
}

// Discover lists every *.csv in InputDir sorted by name.
func (s *Selector) Discover(ctx context.Context) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.InputDir)
	if err != nil {
		return nil, fmt.Errorf("read input dir %s: %w", s.InputDir, err)
	}
	jobs := make([]Job, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		jobs = append(jobs, Job{
			Name:       e.Name(),
			InputPath:  filepath.Join(s.InputDir, e.Name()),
			OutputPath: filepath.Join(s.OutputDir, e.Name()),
		})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs, nil
}

// Pending returns the discovered jobs that still need work: no output file
// yet, and not done or actively claimed in the store.
func (s *Selector) Pending(ctx context.Context) ([]Job, error) {
	all, err := s.Discover(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]Job, 0, len(all))
	for _, job := range all {
		if outputExists(job) {
			continue
		}
		if s.Store != nil {
			rec, err := s.Store.Status(ctx, job)
			if err != nil {
				return nil, fmt.Errorf("job %s status: %w", job.Name, err)
			}
			if rec.Status == StatusDone || rec.Status == StatusClaimed {
				continue
			}
		}
		pending = append(pending, job)
	}
	return pending, nil
}

// SelectAll returns every pending job in order.
func (s *Selector) SelectAll(ctx context.Context) ([]Job, error) {
	return s.Pending(ctx)
}

// SelectScheduled picks one pending job by the current minute, so repeated
// scheduled runs rotate through the backlog. ok is false when nothing is
// pending.
func (s *Selector) SelectScheduled(ctx context.Context) (job Job, ok bool, err error) {
	pending, err := s.Pending(ctx)
	if err != nil {
		return Job{}, false, err
	}
	if len(pending) == 0 {
		return Job{}, false, nil
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return pending[now().Minute()%len(pending)], true, nil
}

func outputExists(job Job) bool {
	_, err := os.Stat(job.OutputPath)
	return err == nil
}
