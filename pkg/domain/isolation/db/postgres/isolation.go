package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/drydock/pkg/conn/postgres/pool"
	"github.com/opst/drydock/pkg/domain"
	"github.com/opst/drydock/pkg/domain/errors/dberrors"
	kdb "github.com/opst/drydock/pkg/domain/isolation/db"
	xe "github.com/opst/drydock/pkg/errors"
)

type pgIsolation struct {
	pool kpool.Pool
}

var _ kdb.Interface = &pgIsolation{}

func New(pool kpool.Pool) kdb.Interface {
	return &pgIsolation{pool: pool}
}

const columns = `
	"isolation_id", "owner", "created_by", "master_instance_id",
	"state", "redeploy_on_killed", "kill_targets", "created_at"
`

func scan(row pgx.Row) (domain.Isolation, error) {
	var iso domain.Isolation
	var state string
	if err := row.Scan(
		&iso.IsolationId, &iso.Owner, &iso.CreatedBy, &iso.MasterInstanceId,
		&state, &iso.RedeployOnKilled, &iso.KillTargets, &iso.CreatedAt,
	); err != nil {
		return domain.Isolation{}, err
	}
	st, err := domain.AsIsolationState(state)
	if err != nil {
		return domain.Isolation{}, xe.Wrap(err)
	}
	iso.State = st
	return iso, nil
}

// one runs a query which returns one Isolation.
//
// When no rows are returned, a dberrors.Missing or, if condition is not empty, a dberrors.Unmatched is returned.
func (m *pgIsolation) one(ctx context.Context, isolationId string, condition string, sql string, args ...any) (domain.Isolation, error) {
	iso, err := scan(m.pool.QueryRow(ctx, sql, args...))
	if err == nil {
		return iso, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Isolation{}, xe.Wrap(err)
	}
	if condition == "" {
		return domain.Isolation{}, xe.WrapAsOuter(dberrors.Missing{Table: "isolation", Identity: isolationId}, 1)
	}
	return domain.Isolation{}, xe.WrapAsOuter(dberrors.Unmatched{
		Table: "isolation", Identity: isolationId, Condition: condition,
	}, 1)
}

func (m *pgIsolation) New(ctx context.Context, isolation kdb.NewIsolation) (domain.Isolation, error) {
	iso, err := scan(m.pool.QueryRow(
		ctx,
		`
		insert into "isolation" ("isolation_id", "owner", "created_by", "master_instance_id", "redeploy_on_killed")
		values ($1, $2, $3, $4, $5)
		returning `+columns,
		uuid.NewString(), isolation.Owner, isolation.CreatedBy,
		isolation.MasterInstanceId, isolation.RedeployOnKilled,
	))
	if err != nil {
		return domain.Isolation{}, xe.Wrap(err)
	}
	return iso, nil
}

func (m *pgIsolation) Get(ctx context.Context, isolationId string) (domain.Isolation, error) {
	return m.one(
		ctx, isolationId, "",
		`select `+columns+` from "isolation" where "isolation_id" = $1`,
		isolationId,
	)
}

func (m *pgIsolation) FindKilling(ctx context.Context, instanceId string) ([]domain.Isolation, error) {
	rows, err := m.pool.Query(
		ctx,
		`
		select `+columns+` from "isolation"
		where "state" = 'killing' and $1 = any("kill_targets")
		order by "created_at"
		`,
		instanceId,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer rows.Close()

	ret := []domain.Isolation{}
	for rows.Next() {
		iso, err := scan(rows)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		ret = append(ret, iso)
	}
	if err := rows.Err(); err != nil {
		return nil, xe.Wrap(err)
	}
	return ret, nil
}

func (m *pgIsolation) SetKilling(ctx context.Context, isolationId string, targets []string) (domain.Isolation, error) {
	if targets == nil {
		targets = []string{}
	}
	return m.one(
		ctx, isolationId, "not killing",
		`
		update "isolation" set "state" = 'killing', "kill_targets" = $2::varchar[]
		where "isolation_id" = $1 and "state" in ('none', 'killed')
		returning `+columns,
		isolationId, targets,
	)
}

func (m *pgIsolation) MarkKilledIfAllStopped(ctx context.Context, isolationId string) (domain.Isolation, bool, error) {
	iso, err := scan(m.pool.QueryRow(
		ctx,
		`
		update "isolation" set "state" = 'killed'
		where
			"isolation_id" = $1
			and "state" = 'killing'
			and not exists (
				select 1 from "instance"
				where
					"instance"."instance_id" = any("isolation"."kill_targets")
					and "instance"."deleted_at" is null
					and "instance"."phase" not in ('none', 'stopped', 'createError')
			)
		returning `+columns,
		isolationId,
	))
	if err == nil {
		return iso, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Isolation{}, false, xe.Wrap(err)
	}

	iso, err = m.Get(ctx, isolationId)
	if err != nil {
		return domain.Isolation{}, false, err
	}
	return iso, false, nil
}

func (m *pgIsolation) SetRedeployed(ctx context.Context, isolationId string) (domain.Isolation, error) {
	return m.one(
		ctx, isolationId, "killed",
		`
		update "isolation" set "state" = 'none', "kill_targets" = '{}'
		where "isolation_id" = $1 and "state" = 'killed'
		returning `+columns,
		isolationId,
	)
}

func (m *pgIsolation) Delete(ctx context.Context, isolationId string) (domain.Isolation, error) {
	return m.one(
		ctx, isolationId, "",
		`delete from "isolation" where "isolation_id" = $1 returning `+columns,
		isolationId,
	)
}
