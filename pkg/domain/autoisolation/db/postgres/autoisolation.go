package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/drydock/pkg/conn/postgres/pool"
	"github.com/opst/drydock/pkg/domain"
	kdb "github.com/opst/drydock/pkg/domain/autoisolation/db"
	domerr "github.com/opst/drydock/pkg/domain/errors"
	"github.com/opst/drydock/pkg/domain/errors/dberrors"
	xe "github.com/opst/drydock/pkg/errors"
)

type pgAutoIsolation struct {
	pool kpool.Pool
}

var _ kdb.Interface = &pgAutoIsolation{}

func New(pool kpool.Pool) kdb.Interface {
	return &pgAutoIsolation{pool: pool}
}

func (m *pgAutoIsolation) New(ctx context.Context, config kdb.NewAutoIsolationConfig) (domain.AutoIsolationConfig, error) {
	if err := domain.ValidateDependencies(config.RequestedDependencies); err != nil {
		return domain.AutoIsolationConfig{}, err
	}

	id := uuid.NewString()
	err := kpool.InTx(ctx, m.pool, func(tx kpool.Tx) error {
		var instanceId *string
		if config.InstanceId != "" {
			instanceId = &config.InstanceId
		}
		if _, err := tx.Exec(
			ctx,
			`
			insert into "auto_isolation_config" (
				"auto_isolation_config_id", "instance_id", "created_by_user", "owned_by_org", "redeploy_on_killed"
			)
			values ($1, $2, $3, $4, $5)
			`,
			id, instanceId, config.CreatedByUser, config.OwnedByOrg, config.RedeployOnKilled,
		); err != nil {
			return xe.Wrap(err)
		}
		for _, d := range config.RequestedDependencies {
			if err := pushDependency(ctx, tx, id, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.AutoIsolationConfig{}, err
	}
	return m.Get(ctx, id)
}

func pushDependency(ctx context.Context, q kpool.Queryer, autoIsolationConfigId string, dependency domain.Dependency) error {
	var instanceId, repo, branch, org *string
	switch d := dependency.(type) {
	case domain.InstanceDependency:
		instanceId = &d.InstanceId
	case domain.RepoDependency:
		repo, branch, org = &d.Repo, &d.Branch, &d.Org
	default:
		return fmt.Errorf("%w: %v", domerr.ErrInvalidDependency, dependency)
	}

	if _, err := q.Exec(
		ctx,
		`
		insert into "auto_isolation_dependency" (
			"auto_isolation_config_id", "dependency_key", "instance_id", "repo", "branch", "org"
		)
		values ($1, $2, $3, $4, $5, $6)
		`,
		autoIsolationConfigId, dependency.Key(), instanceId, repo, branch, org,
	); err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) {
			switch pgerr.Code {
			case pgerrcode.UniqueViolation:
				return fmt.Errorf("%w: %s", domerr.ErrDuplicateDependency, dependency.Key())
			case pgerrcode.ForeignKeyViolation:
				return xe.Wrap(dberrors.Missing{Table: "auto_isolation_config", Identity: autoIsolationConfigId})
			}
		}
		return xe.Wrap(err)
	}
	return nil
}

func (m *pgAutoIsolation) find(ctx context.Context, identity string, where string, arg any) (domain.AutoIsolationConfig, error) {
	var aic domain.AutoIsolationConfig
	var instanceId *string
	var deletedAt pgtype.Timestamptz

	if err := m.pool.QueryRow(
		ctx,
		`
		select
			"auto_isolation_config_id", "instance_id", "created_by_user", "owned_by_org",
			"redeploy_on_killed", "deleted_at"
		from "auto_isolation_config"
		where "deleted_at" is null and `+where+`
		order by "created_at" desc
		limit 1
		`,
		arg,
	).Scan(
		&aic.AutoIsolationConfigId, &instanceId, &aic.CreatedByUser, &aic.OwnedByOrg,
		&aic.RedeployOnKilled, &deletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AutoIsolationConfig{}, xe.WrapAsOuter(
				dberrors.Missing{Table: "auto_isolation_config", Identity: identity}, 1,
			)
		}
		return domain.AutoIsolationConfig{}, xe.Wrap(err)
	}
	aic.InstanceId = deref(instanceId)
	if deletedAt.Status == pgtype.Present {
		t := deletedAt.Time
		aic.Deleted = &t
	}

	rows, err := m.pool.Query(
		ctx,
		`
		select "instance_id", "repo", "branch", "org"
		from "auto_isolation_dependency"
		where "auto_isolation_config_id" = $1
		order by "seq"
		`,
		aic.AutoIsolationConfigId,
	)
	if err != nil {
		return domain.AutoIsolationConfig{}, xe.Wrap(err)
	}
	defer rows.Close()

	aic.RequestedDependencies = []domain.Dependency{}
	for rows.Next() {
		var instanceId, repo, branch, org *string
		if err := rows.Scan(&instanceId, &repo, &branch, &org); err != nil {
			return domain.AutoIsolationConfig{}, xe.Wrap(err)
		}
		d, err := domain.DependencySpec{
			Instance: deref(instanceId), Repo: deref(repo), Branch: deref(branch), Org: deref(org),
		}.Dependency()
		if err != nil {
			return domain.AutoIsolationConfig{}, xe.Wrap(err)
		}
		aic.RequestedDependencies = append(aic.RequestedDependencies, d)
	}
	if err := rows.Err(); err != nil {
		return domain.AutoIsolationConfig{}, xe.Wrap(err)
	}
	return aic, nil
}

func (m *pgAutoIsolation) Get(ctx context.Context, autoIsolationConfigId string) (domain.AutoIsolationConfig, error) {
	return m.find(ctx, autoIsolationConfigId, `"auto_isolation_config_id" = $1`, autoIsolationConfigId)
}

func (m *pgAutoIsolation) FindByInstance(ctx context.Context, instanceId string) (domain.AutoIsolationConfig, error) {
	return m.find(ctx, "instance="+instanceId, `"instance_id" = $1`, instanceId)
}

func (m *pgAutoIsolation) SetInstance(ctx context.Context, autoIsolationConfigId string, instanceId string) error {
	tag, err := m.pool.Exec(
		ctx,
		`
		update "auto_isolation_config" set "instance_id" = $2
		where "auto_isolation_config_id" = $1 and "deleted_at" is null
		`,
		autoIsolationConfigId, instanceId,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return xe.Wrap(dberrors.Missing{Table: "auto_isolation_config", Identity: autoIsolationConfigId})
	}
	return nil
}

func (m *pgAutoIsolation) PushDependency(ctx context.Context, autoIsolationConfigId string, dependency domain.Dependency) error {
	if dependency == nil {
		return fmt.Errorf("%w: nil dependency", domerr.ErrInvalidDependency)
	}
	return kpool.InTx(ctx, m.pool, func(tx kpool.Tx) error {
		var found string
		if err := tx.QueryRow(
			ctx,
			`
			select "auto_isolation_config_id" from "auto_isolation_config"
			where "auto_isolation_config_id" = $1 and "deleted_at" is null
			for update
			`,
			autoIsolationConfigId,
		).Scan(&found); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return xe.Wrap(dberrors.Missing{Table: "auto_isolation_config", Identity: autoIsolationConfigId})
			}
			return xe.Wrap(err)
		}
		return pushDependency(ctx, tx, autoIsolationConfigId, dependency)
	})
}

func (m *pgAutoIsolation) RemoveInstance(ctx context.Context, instanceId string) error {
	return kpool.InTx(ctx, m.pool, func(tx kpool.Tx) error {
		if _, err := tx.Exec(
			ctx, `delete from "auto_isolation_dependency" where "instance_id" = $1`, instanceId,
		); err != nil {
			return xe.Wrap(err)
		}
		if _, err := tx.Exec(
			ctx,
			`
			update "auto_isolation_config" set "deleted_at" = now()
			where "instance_id" = $1 and "deleted_at" is null
			`,
			instanceId,
		); err != nil {
			return xe.Wrap(err)
		}
		return nil
	})
}

func (m *pgAutoIsolation) Delete(ctx context.Context, autoIsolationConfigId string) error {
	tag, err := m.pool.Exec(
		ctx,
		`
		update "auto_isolation_config" set "deleted_at" = now()
		where "auto_isolation_config_id" = $1 and "deleted_at" is null
		`,
		autoIsolationConfigId,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return xe.Wrap(dberrors.Missing{Table: "auto_isolation_config", Identity: autoIsolationConfigId})
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
