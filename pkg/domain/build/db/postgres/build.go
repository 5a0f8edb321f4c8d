package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	kpool "github.com/opst/drydock/pkg/conn/postgres/pool"
	"github.com/opst/drydock/pkg/domain"
	kdb "github.com/opst/drydock/pkg/domain/build/db"
	"github.com/opst/drydock/pkg/domain/errors/dberrors"
	xe "github.com/opst/drydock/pkg/errors"
)

type pgBuild struct {
	pool kpool.Pool
}

var _ kdb.Interface = &pgBuild{}

func New(pool kpool.Pool) kdb.Interface {
	return &pgBuild{pool: pool}
}

func (m *pgBuild) New(ctx context.Context, build kdb.NewBuild) (domain.Build, error) {
	buildId := uuid.NewString()

	err := kpool.InTx(ctx, m.pool, func(tx kpool.Tx) error {
		if _, err := tx.Exec(
			ctx,
			`insert into "build" ("build_id", "owner", "created_by") values ($1, $2, $3)`,
			buildId, build.Owner, build.CreatedBy,
		); err != nil {
			return xe.Wrap(err)
		}

		for ordinal, cvId := range build.ContextVersionIds {
			if _, err := tx.Exec(
				ctx,
				`
				insert into "build_context_version" ("build_id", "context_version_id", "ordinal")
				values ($1, $2, $3)
				on conflict do nothing
				`,
				buildId, cvId, ordinal,
			); err != nil {
				if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) && pgerr.Code == pgerrcode.ForeignKeyViolation {
					return xe.Wrap(dberrors.Missing{Table: "context_version", Identity: cvId})
				}
				return xe.Wrap(err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Build{}, err
	}

	found, err := m.Get(ctx, []string{buildId})
	if err != nil {
		return domain.Build{}, err
	}
	b, ok := found[buildId]
	if !ok {
		return domain.Build{}, xe.Wrap(dberrors.Missing{Table: "build", Identity: buildId})
	}
	return b, nil
}

func (m *pgBuild) Get(ctx context.Context, buildIds []string) (map[string]domain.Build, error) {
	rows, err := m.pool.Query(
		ctx,
		`
		select
			"b"."build_id", "b"."build_number", "b"."owner", "b"."created_by",
			"b"."started", "b"."completed", "b"."failed",
			coalesce(
				array_agg(distinct "cv"."context_id" order by "cv"."context_id")
					filter (where "cv"."context_id" is not null),
				'{}'
			),
			coalesce(
				array_agg("cv"."context_version_id" order by "bcv"."ordinal")
					filter (where "cv"."context_version_id" is not null),
				'{}'
			)
		from "build" as "b"
		left join "build_context_version" as "bcv" on "bcv"."build_id" = "b"."build_id"
		left join "context_version" as "cv" on "cv"."context_version_id" = "bcv"."context_version_id"
		where "b"."build_id" = any($1::varchar[])
		group by "b"."build_id"
		`,
		buildIds,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer rows.Close()

	ret := map[string]domain.Build{}
	for rows.Next() {
		var b domain.Build
		var completed pgtype.Timestamptz
		if err := rows.Scan(
			&b.BuildId, &b.BuildNumber, &b.Owner, &b.CreatedBy,
			&b.Started, &completed, &b.Failed,
			&b.ContextIds, &b.ContextVersionIds,
		); err != nil {
			return nil, xe.Wrap(err)
		}
		if completed.Status == pgtype.Present {
			t := completed.Time
			b.Completed = &t
		}
		ret[b.BuildId] = b
	}
	if err := rows.Err(); err != nil {
		return nil, xe.Wrap(err)
	}
	return ret, nil
}

func (m *pgBuild) Resolve(ctx context.Context, contextVersionIds []string) ([]domain.Build, error) {
	rows, err := m.pool.Query(
		ctx,
		`
		with "candidate" as (
			select distinct "build_id" from "build_context_version"
			where "context_version_id" = any($1::varchar[])
		),
		"summary" as (
			select
				"bcv"."build_id",
				bool_and("cv"."state" in ('buildCompleted', 'buildErrored')) as "done",
				bool_or("cv"."state" = 'buildErrored') as "errored"
			from "build_context_version" as "bcv"
			inner join "context_version" as "cv"
				on "cv"."context_version_id" = "bcv"."context_version_id"
			where "bcv"."build_id" in (table "candidate")
			group by "bcv"."build_id"
		)
		update "build"
		set "completed" = now(), "failed" = "summary"."errored"
		from "summary"
		where
			"build"."build_id" = "summary"."build_id"
			and "summary"."done"
			and "build"."completed" is null
		returning "build"."build_id"
		`,
		contextVersionIds,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	buildIds := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, xe.Wrap(err)
		}
		buildIds = append(buildIds, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, xe.Wrap(err)
	}
	if len(buildIds) == 0 {
		return []domain.Build{}, nil
	}

	found, err := m.Get(ctx, buildIds)
	if err != nil {
		return nil, err
	}
	ret := make([]domain.Build, 0, len(found))
	for _, id := range buildIds {
		if b, ok := found[id]; ok {
			ret = append(ret, b)
		}
	}
	return ret, nil
}
