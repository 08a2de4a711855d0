package jobs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hlrcheck/hlr-batch/internal/jobs"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupDirs(t *testing.T, inputs ...string) (string, string) {
	t.Helper()
	root := t.TempDir()
	in := filepath.Join(root, "raw")
	out := filepath.Join(root, "raw_checker")
	require.NoError(t, os.MkdirAll(in, 0o755))
	require.NoError(t, os.MkdirAll(out, 0o755))
	for _, name := range inputs {
		writeFile(t, filepath.Join(in, name), "prefix\n812\n")
	}
	return in, out
}

func names(js []jobs.Job) []string {
	out := make([]string, 0, len(js))
	for _, j := range js {
		out = append(out, j.Name)
	}
	return out
}

func TestSelector_PendingSkipsExistingOutput(t *testing.T) {
	t.Parallel()

	in, out := setupDirs(t, "b.csv", "a.csv", "c.csv", "notes.txt")
	writeFile(t, filepath.Join(out, "b.csv"), "")

	sel := &jobs.Selector{InputDir: in, OutputDir: out}
	pending, err := sel.Pending(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"a.csv", "c.csv"}, names(pending))
	require.Equal(t, filepath.Join(in, "a.csv"), pending[0].InputPath)
	require.Equal(t, filepath.Join(out, "a.csv"), pending[0].OutputPath)
}

func TestSelector_SelectAllIsIdempotentAfterCompletion(t *testing.T) {
	t.Parallel()

	in, out := setupDirs(t, "a.csv", "b.csv")
	sel := &jobs.Selector{InputDir: in, OutputDir: out}

	first, err := sel.SelectAll(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)
	for _, j := range first {
		writeFile(t, j.OutputPath, "prefix\n")
	}

	second, err := sel.SelectAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, second)
}

func TestSelector_SelectScheduled(t *testing.T) {
	t.Parallel()

	in, out := setupDirs(t, "a.csv", "b.csv", "c.csv", "d.csv")
	writeFile(t, filepath.Join(out, "a.csv"), "")

	sel := &jobs.Selector{
		InputDir:  in,
		OutputDir: out,
		Now:       func() time.Time { return time.Date(2024, 1, 1, 10, 4, 0, 0, time.UTC) },
	}
	job, ok, err := sel.SelectScheduled(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	// pending = b, c, d; 4 % 3 = 1
	require.Equal(t, "c.csv", job.Name)
}

func TestSelector_SelectScheduledNothingPending(t *testing.T) {
	t.Parallel()

	in, out := setupDirs(t)
	sel := &jobs.Selector{InputDir: in, OutputDir: out}
	_, ok, err := sel.SelectScheduled(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSelector_MissingInputDir(t *testing.T) {
	t.Parallel()

	sel := &jobs.Selector{InputDir: filepath.Join(t.TempDir(), "nope")}
	_, err := sel.Pending(context.Background())
	require.Error(t, err)
}

func TestSelector_SkipsClaimedJobs(t *testing.T) {
	t.Parallel()

	in, out := setupDirs(t, "a.csv", "b.csv")
	store := jobs.NewFileStore(out, time.Hour)
	sel := &jobs.Selector{InputDir: in, OutputDir: out, Store: store}

	all, err := sel.Discover(context.Background())
	require.NoError(t, err)
	ok, err := store.Claim(context.Background(), all[0])
	require.NoError(t, err)
	require.True(t, ok)

	pending, err := sel.Pending(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"b.csv"}, names(pending))
}

func storeContract(t *testing.T, store jobs.Store, out string) {
	ctx := context.Background()
	job := jobs.Job{Name: "a.csv", InputPath: "unused", OutputPath: filepath.Join(out, "a.csv")}

	rec, err := store.Status(ctx, job)
	require.NoError(t, err)
	require.Equal(t, jobs.StatusPending, rec.Status)

	ok, err := store.Claim(ctx, job)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Claim(ctx, job)
	require.NoError(t, err)
	require.False(t, ok, "second claim must lose")

	rec, err = store.Status(ctx, job)
	require.NoError(t, err)
	require.Equal(t, jobs.StatusClaimed, rec.Status)

	require.NoError(t, store.Fail(ctx, job, errors.New("browser crashed")))
	rec, err = store.Status(ctx, job)
	require.NoError(t, err)
	require.Equal(t, jobs.StatusFailed, rec.Status)
	require.Contains(t, rec.Error, "browser crashed")

	ok, err = store.Claim(ctx, job)
	require.NoError(t, err)
	require.True(t, ok, "failed job can be retried")

	writeFile(t, job.OutputPath, "prefix,city_csv,sim_csv,provider_csv,provider_api,hlr_api,raw_text\n812,,,,XL,,Operator: XL\n")
	require.NoError(t, store.Complete(ctx, job, 1))
	rec, err = store.Status(ctx, job)
	require.NoError(t, err)
	require.Equal(t, jobs.StatusDone, rec.Status)
	require.Equal(t, 1, rec.Records)

	ok, err = store.Claim(ctx, job)
	require.NoError(t, err)
	require.False(t, ok, "done job cannot be claimed")

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "a.csv", list[0].Name)
}

func TestFileStore_Contract(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	storeContract(t, jobs.NewFileStore(out, time.Hour), out)

	_, err := os.Stat(filepath.Join(out, "a.csv.claim"))
	require.True(t, os.IsNotExist(err), "claim marker should be released")
}

func TestSQLiteStore_Contract(t *testing.T) {
	t.Parallel()

	store, err := jobs.OpenSQLiteStore(context.Background(), ":memory:", time.Hour)
	require.NoError(t, err)
	defer store.Close()

	storeContract(t, store, t.TempDir())
}

func TestFileStore_StaleClaimIsReclaimable(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	job := jobs.Job{Name: "a.csv", OutputPath: filepath.Join(out, "a.csv")}
	writeFile(t, job.OutputPath+".claim", "pid=1\n")
	old := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(job.OutputPath+".claim", old, old))

	store := jobs.NewFileStore(out, time.Hour)
	rec, err := store.Status(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, jobs.StatusPending, rec.Status)

	ok, err := store.Claim(context.Background(), job)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFileStore_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	store := jobs.NewFileStore(out, time.Hour)
	job := jobs.Job{Name: "a.csv", OutputPath: filepath.Join(out, "a.csv")}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Claim(context.Background(), job)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}
