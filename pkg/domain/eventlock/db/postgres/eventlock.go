package postgres

import (
	"context"
	"time"

	kpool "github.com/opst/drydock/pkg/conn/postgres/pool"
	kdb "github.com/opst/drydock/pkg/domain/eventlock/db"
	xe "github.com/opst/drydock/pkg/errors"
)

type pgEventLock struct {
	pool kpool.Pool
}

var _ kdb.Interface = &pgEventLock{}

func New(pool kpool.Pool) kdb.Interface {
	return &pgEventLock{pool: pool}
}

func (m *pgEventLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	tag, err := m.pool.Exec(
		ctx,
		`
		insert into "event_lock" ("key", "expires_at")
		values ($1, now() + $2::float8 * interval '1 second')
		on conflict ("key") do update
		set "expires_at" = "excluded"."expires_at"
		where "event_lock"."expires_at" < now()
		`,
		key, ttl.Seconds(),
	)
	if err != nil {
		return false, xe.Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (m *pgEventLock) Release(ctx context.Context, key string) error {
	if _, err := m.pool.Exec(ctx, `delete from "event_lock" where "key" = $1`, key); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func (m *pgEventLock) Sweep(ctx context.Context) (int64, error) {
	tag, err := m.pool.Exec(ctx, `delete from "event_lock" where "expires_at" < now()`)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	return tag.RowsAffected(), nil
}
