package postgres

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/drydock/pkg/conn/postgres/pool"
	"github.com/opst/drydock/pkg/domain"
	kdb "github.com/opst/drydock/pkg/domain/job/db"
	xe "github.com/opst/drydock/pkg/errors"
)

// Backoff is the retry policy of jobs.
type Backoff struct {
	// the number of attempts before the job is failed, when not specified by the job.
	MaxAttempts int

	// delay before the first retry.
	Base time.Duration

	// delay is multiplied by this for each retry.
	Factor float64
}

// Delay returns how long a job should wait after its attempts-th attempt failed.
func (b Backoff) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(b.Base) * math.Pow(factor, float64(attempts-1))
	if d > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

type pgJob struct {
	pool    kpool.Pool
	backoff Backoff
}

var _ kdb.Interface = &pgJob{}

func New(pool kpool.Pool, backoff Backoff) kdb.Interface {
	if backoff.MaxAttempts < 1 {
		backoff.MaxAttempts = 1
	}
	return &pgJob{pool: pool, backoff: backoff}
}

const columns = `
	"job_id", "kind", "payload"::text, "dedupe_key", "status",
	"attempts", "max_attempts", "visible_after", "last_error", "created_at"
`

func scan(row pgx.Row) (domain.Job, error) {
	var job domain.Job
	var payload, status string
	var dedupeKey, lastError *string
	if err := row.Scan(
		&job.JobId, &job.Kind, &payload, &dedupeKey, &status,
		&job.Attempts, &job.MaxAttempts, &job.VisibleAfter, &lastError, &job.CreatedAt,
	); err != nil {
		return domain.Job{}, err
	}
	st, err := domain.AsJobStatus(status)
	if err != nil {
		return domain.Job{}, xe.Wrap(err)
	}
	job.Status = st
	job.Payload = []byte(payload)
	if dedupeKey != nil {
		job.DedupeKey = *dedupeKey
	}
	if lastError != nil {
		job.LastError = *lastError
	}
	return job, nil
}

func (m *pgJob) Publish(ctx context.Context, kind string, payload []byte, options domain.PublishOptions) (bool, error) {
	var dedupeKey *string
	if options.DedupeKey != "" {
		dedupeKey = &options.DedupeKey
	}
	maxAttempts := options.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = m.backoff.MaxAttempts
	}
	visibleAfter := pgtype.Timestamptz{Status: pgtype.Null}
	if !options.VisibleAfter.IsZero() {
		visibleAfter = pgtype.Timestamptz{Time: options.VisibleAfter, Status: pgtype.Present}
	}

	rows, err := m.pool.Query(
		ctx,
		`
		insert into "job" ("kind", "payload", "dedupe_key", "max_attempts", "visible_after")
		values ($1, $2::jsonb, $3, $4, coalesce($5, now()))
		on conflict ("dedupe_key") where "status" = 'queued' do nothing
		returning "job_id"
		`,
		kind, string(payload), dedupeKey, maxAttempts, visibleAfter,
	)
	if err != nil {
		return false, xe.Wrap(err)
	}
	defer rows.Close()

	inserted := rows.Next()
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, xe.Wrap(err)
	}
	return inserted, nil
}

func (m *pgJob) Pop(
	ctx context.Context, kinds []string, handler func(context.Context, domain.Job) domain.JobOutcome,
) (domain.Job, bool, error) {
	var popped domain.Job
	found := false

	err := kpool.InTx(ctx, m.pool, func(tx kpool.Tx) error {
		job, err := scan(tx.QueryRow(
			ctx,
			`
			select `+columns+` from "job"
			where
				"status" = 'queued'
				and "kind" = any($1::varchar[])
				and "visible_after" <= now()
			order by "visible_after", "job_id"
			limit 1
			for update skip locked
			`,
			kinds,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return xe.Wrap(err)
		}
		found = true

		outcome := handler(ctx, job)

		job.Attempts += 1
		status := outcome.Status()
		delay := time.Duration(0)
		if status == domain.JobQueued {
			if job.Attempts >= job.MaxAttempts {
				status = domain.JobFailed
			} else {
				delay = m.backoff.Delay(job.Attempts)
			}
		}
		var lastError *string
		if err := outcome.Err(); err != nil {
			msg := err.Error()
			lastError = &msg
		}

		popped, err = scan(tx.QueryRow(
			ctx,
			`
			update "job"
			set
				"status" = $2,
				"attempts" = $3,
				"last_error" = $4,
				"visible_after" = now() + $5::float8 * interval '1 second',
				"updated_at" = now()
			where "job_id" = $1
			returning `+columns,
			job.JobId, status.String(), job.Attempts, lastError, delay.Seconds(),
		))
		if err != nil {
			return xe.Wrap(err)
		}
		return nil
	})
	if err != nil {
		return domain.Job{}, false, err
	}
	return popped, found, nil
}

func (m *pgJob) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := m.pool.Exec(
		ctx,
		`delete from "job" where "status" <> 'queued' and "updated_at" < $1`,
		before,
	)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	return tag.RowsAffected(), nil
}
