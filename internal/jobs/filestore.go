package jobs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hlrcheck/hlr-batch/pkg/pipeline/io/local"
)

const (
	claimSuffix  = ".claim"
	failedSuffix = ".failed"

	DefaultStaleClaimAfter = 2 * time.Hour
)

// FileStore keeps job state next to the output files. A claim is a marker
// file created exclusively, so two processes sharing a directory never both
// win the same job.
type FileStore struct {
	OutputDir string
	// StaleClaimAfter is how old a claim marker must be before another
	// process may take the job over.
	StaleClaimAfter time.Duration

	now func() time.Time
}

func NewFileStore(outputDir string, staleAfter time.Duration) *FileStore {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleClaimAfter
	}
	return &FileStore{OutputDir: outputDir, StaleClaimAfter: staleAfter, now: time.Now}
}

func (s *FileStore) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *FileStore) Status(ctx context.Context, job Job) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	rec := Record{Name: job.Name, Status: StatusPending}

	if info, err := os.Stat(job.OutputPath); err == nil {
		rec.Status = StatusDone
		rec.UpdatedAt = info.ModTime()
		rec.Records = countRecords(job.OutputPath)
		return rec, nil
	}
	if info, err := os.Stat(job.OutputPath + claimSuffix); err == nil {
		rec.ClaimedAt = info.ModTime()
		rec.UpdatedAt = info.ModTime()
		if s.clock().Sub(info.ModTime()) < s.StaleClaimAfter {
			rec.Status = StatusClaimed
			return rec, nil
		}
	}
	if b, err := os.ReadFile(job.OutputPath + failedSuffix); err == nil {
		rec.Status = StatusFailed
		rec.Error = strings.TrimSpace(string(b))
		if info, err := os.Stat(job.OutputPath + failedSuffix); err == nil {
			rec.UpdatedAt = info.ModTime()
		}
	}
	return rec, nil
}

func (s *FileStore) Claim(ctx context.Context, job Job) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if outputExists(job) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o755); err != nil {
		return false, fmt.Errorf("create output dir: %w", err)
	}
	marker := job.OutputPath + claimSuffix

	ok, err := s.createMarker(marker)
	if ok || err != nil {
		return ok, err
	}
	info, err := os.Stat(marker)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.createMarker(marker)
		}
		return false, fmt.Errorf("stat claim %s: %w", marker, err)
	}
	if s.clock().Sub(info.ModTime()) < s.StaleClaimAfter {
		return false, nil
	}
	if err := os.Remove(marker); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("remove stale claim %s: %w", marker, err)
	}
	return s.createMarker(marker)
}

func (s *FileStore) createMarker(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create claim %s: %w", path, err)
	}
	_, werr := fmt.Fprintf(f, "pid=%d claimed_at=%s\n", os.Getpid(), s.clock().UTC().Format(time.RFC3339))
	cerr := f.Close()
	if werr != nil {
		return false, fmt.Errorf("write claim %s: %w", path, werr)
	}
	if cerr != nil {
		return false, fmt.Errorf("close claim %s: %w", path, cerr)
	}
	// Marker age drives staleness, so stamp it with the store's clock.
	t := s.clock()
	if err := os.Chtimes(path, t, t); err != nil {
		return true, fmt.Errorf("stamp claim %s: %w", path, err)
	}
	return true, nil
}

// Complete releases the claim. The output file itself marks the job done.
func (s *FileStore) Complete(ctx context.Context, job Job, _ int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := removeIfExists(job.OutputPath + failedSuffix); err != nil {
		return err
	}
	return removeIfExists(job.OutputPath + claimSuffix)
}

// Fail records cause and releases the claim so a later run can retry.
func (s *FileStore) Fail(ctx context.Context, job Job, cause error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(job.OutputPath+failedSuffix, []byte(msg+"\n"), 0o644); err != nil {
		return fmt.Errorf("write failure marker: %w", err)
	}
	return removeIfExists(job.OutputPath + claimSuffix)
}

// List reports every job that has an output file or a marker in OutputDir.
func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	entries, err := os.ReadDir(s.OutputDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read output dir %s: %w", s.OutputDir, err)
	}
	names := map[string]bool{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		name = strings.TrimSuffix(name, claimSuffix)
		name = strings.TrimSuffix(name, failedSuffix)
		if strings.EqualFold(filepath.Ext(name), ".csv") {
			names[name] = true
		}
	}
	out := make([]Record, 0, len(names))
	for name := range names {
		rec, err := s.Status(ctx, Job{Name: name, OutputPath: filepath.Join(s.OutputDir, name)})
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func countRecords(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	records, err := local.ReadOutputCSV(f)
	if err != nil {
		return 0
	}
	return len(records)
}
