package jobs

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var sqliteSchema string

// SQLiteStore keeps job state in a SQLite table. Claims are a single
// conditional upsert, so concurrent processes sharing the database file
// cannot both claim a job.
type SQLiteStore struct {
	db              *sql.DB
	staleClaimAfter time.Duration
	now             func() time.Time
}

// OpenSQLiteStore opens (and migrates) the database at path. ":memory:" works
// for tests.
func OpenSQLiteStore(ctx context.Context, path string, staleAfter time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open job store %s: %w", path, err)
	}
	// modernc serializes writers per connection; one connection keeps
	// ":memory:" databases shared and avoids SQLITE_BUSY between our own calls.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "pragma busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure job store: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate job store: %w", err)
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleClaimAfter
	}
	return &SQLiteStore{db: db, staleClaimAfter: staleAfter, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Status(ctx context.Context, job Job) (Record, error) {
	if outputExists(job) {
		rec, err := s.get(ctx, job.Name)
		if err != nil {
			return Record{}, err
		}
		rec.Status = StatusDone
		return rec, nil
	}
	rec, err := s.get(ctx, job.Name)
	if err != nil {
		return Record{}, err
	}
	if rec.Status == StatusClaimed && s.now().Sub(rec.ClaimedAt) >= s.staleClaimAfter {
		rec.Status = StatusPending
	}
	return rec, nil
}

func (s *SQLiteStore) get(ctx context.Context, name string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`select status, claimed_at, updated_at, records, error from jobs where name = ?`, name)
	rec, err := scanRecord(name, row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{Name: name, Status: StatusPending}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("job %s: %w", name, err)
	}
	return rec, nil
}

func (s *SQLiteStore) Claim(ctx context.Context, job Job) (bool, error) {
	if outputExists(job) {
		return false, nil
	}
	now := s.now()
	staleBefore := now.Add(-s.staleClaimAfter).UnixNano()
	res, err := s.db.ExecContext(ctx, `
insert into jobs (name, status, claimed_at, updated_at, records, error)
values (?1, 'claimed', ?2, ?2, 0, '')
on conflict (name) do update set
    status = 'claimed',
    claimed_at = excluded.claimed_at,
    updated_at = excluded.updated_at,
    error = ''
where jobs.status in ('pending', 'failed')
   or (jobs.status = 'claimed' and jobs.claimed_at < ?3)`,
		job.Name, now.UnixNano(), staleBefore)
	if err != nil {
		return false, fmt.Errorf("claim job %s: %w", job.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim job %s: %w", job.Name, err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) Complete(ctx context.Context, job Job, records int) error {
	return s.finish(ctx, job, StatusDone, records, "")
}

func (s *SQLiteStore) Fail(ctx context.Context, job Job, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return s.finish(ctx, job, StatusFailed, 0, msg)
}

func (s *SQLiteStore) finish(ctx context.Context, job Job, status Status, records int, msg string) error {
	_, err := s.db.ExecContext(ctx, `
insert into jobs (name, status, claimed_at, updated_at, records, error)
values (?1, ?2, 0, ?3, ?4, ?5)
on conflict (name) do update set
    status = excluded.status,
    updated_at = excluded.updated_at,
    records = excluded.records,
    error = excluded.error`,
		job.Name, string(status), s.now().UnixNano(), records, msg)
	if err != nil {
		return fmt.Errorf("mark job %s %s: %w", job.Name, status, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`select name, status, claimed_at, updated_at, records, error from jobs order by name`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var name string
		rec, err := scanRecord("", func(dest ...any) error {
			return rows.Scan(append([]any{&name}, dest...)...)
		})
		if err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		rec.Name = name
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return out, nil
}

func scanRecord(name string, scan func(dest ...any) error) (Record, error) {
	var (
		status              string
		claimedAt, updateAt int64
		rec                 = Record{Name: name}
	)
	if err := scan(&status, &claimedAt, &updateAt, &rec.Records, &rec.Error); err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	if claimedAt > 0 {
		rec.ClaimedAt = time.Unix(0, claimedAt)
	}
	rec.UpdatedAt = time.Unix(0, updateAt)
	return rec, nil
}
