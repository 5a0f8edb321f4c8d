package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/drydock/pkg/conn/postgres/pool"
	"github.com/opst/drydock/pkg/domain"
	domerr "github.com/opst/drydock/pkg/domain/errors"
	"github.com/opst/drydock/pkg/domain/errors/dberrors"
	kdb "github.com/opst/drydock/pkg/domain/instance/db"
	xe "github.com/opst/drydock/pkg/errors"
)

type pgInstance struct {
	pool kpool.Pool
}

var _ kdb.Interface = &pgInstance{}

func New(pool kpool.Pool) kdb.Interface {
	return &pgInstance{pool: pool}
}

const columns = `
	"instance_id", "name", "owner", "created_by",
	"build_id", "context_version_id", "repo", "branch",
	"phase", "docker_host", "docker_container", "container_error", "deployment_uuid",
	"image_pull_host", "image_pull_started",
	"isolated", "is_isolation_group_master", "forked_from",
	"created_at", "deleted_at"
`

func scan(row pgx.Row) (domain.Instance, error) {
	var inst domain.Instance
	var phase string
	var host, container, containerErr, deployment, pullHost, isolated, forkedFrom *string
	var pullStarted, deletedAt pgtype.Timestamptz

	if err := row.Scan(
		&inst.InstanceId, &inst.Name, &inst.Owner, &inst.CreatedBy,
		&inst.BuildId, &inst.ContextVersionId, &inst.Repo, &inst.Branch,
		&phase, &host, &container, &containerErr, &deployment,
		&pullHost, &pullStarted,
		&isolated, &inst.IsIsolationGroupMaster, &forkedFrom,
		&inst.CreatedAt, &deletedAt,
	); err != nil {
		return domain.Instance{}, err
	}

	p, err := domain.AsContainerPhase(phase)
	if err != nil {
		return domain.Instance{}, xe.Wrap(err)
	}
	inst.Container = domain.Container{
		ContainerRef: domain.ContainerRef{
			DockerHost:      deref(host),
			DockerContainer: deref(container),
		},
		Phase:          p,
		Error:          deref(containerErr),
		DeploymentUuid: deref(deployment),
	}
	if pullHost != nil && pullStarted.Status == pgtype.Present {
		inst.ImagePull = &domain.ImagePull{DockerHost: *pullHost, Started: pullStarted.Time}
	}
	inst.Isolated = deref(isolated)
	inst.ForkedFrom = deref(forkedFrom)
	if deletedAt.Status == pgtype.Present {
		t := deletedAt.Time
		inst.Deleted = &t
	}
	return inst, nil
}

func scanAll(rows pgx.Rows) ([]domain.Instance, error) {
	defer rows.Close()
	ret := []domain.Instance{}
	for rows.Next() {
		inst, err := scan(rows)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		ret = append(ret, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, xe.Wrap(err)
	}
	return ret, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (m *pgInstance) New(ctx context.Context, instance kdb.NewInstance) (domain.Instance, error) {
	created, err := scan(m.pool.QueryRow(
		ctx,
		`
		insert into "instance" (
			"instance_id", "name", "owner", "created_by",
			"build_id", "context_version_id", "repo", "branch",
			"isolated", "is_isolation_group_master", "forked_from"
		)
		values ($1, $2, $3, $4, $5, $6, lower($7), lower($8), $9, $10, $11)
		returning `+columns,
		uuid.NewString(), instance.Name, instance.Owner, instance.CreatedBy,
		instance.BuildId, instance.ContextVersionId, instance.Repo, instance.Branch,
		nullIfEmpty(instance.Isolated), instance.IsIsolationGroupMaster, nullIfEmpty(instance.ForkedFrom),
	))
	if err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) {
			switch pgerr.Code {
			case pgerrcode.UniqueViolation:
				return domain.Instance{}, fmt.Errorf(
					"%w: instance %s of %s already exists", domerr.ErrConflict, instance.Name, instance.Owner,
				)
			case pgerrcode.ForeignKeyViolation:
				return domain.Instance{}, xe.Wrap(dberrors.Missing{
					Table: pgerr.TableName, Identity: pgerr.Detail,
				})
			}
		}
		return domain.Instance{}, xe.Wrap(err)
	}
	return created, nil
}

func (m *pgInstance) Get(ctx context.Context, instanceIds []string) (map[string]domain.Instance, error) {
	found, err := m.Find(ctx, kdb.InstanceQuery{InstanceIds: instanceIds})
	if err != nil {
		return nil, err
	}
	ret := make(map[string]domain.Instance, len(found))
	for _, inst := range found {
		ret[inst.InstanceId] = inst
	}
	return ret, nil
}

func (m *pgInstance) Find(ctx context.Context, query kdb.InstanceQuery) ([]domain.Instance, error) {
	where := []string{`"deleted_at" is null`}
	args := []any{}
	cond := func(expr string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(expr, len(args)))
	}

	if query.InstanceIds != nil {
		cond(`"instance_id" = any($%d::varchar[])`, query.InstanceIds)
	}
	if query.ContextVersionIds != nil {
		cond(`"context_version_id" = any($%d::varchar[])`, query.ContextVersionIds)
	}
	if query.BuildIds != nil {
		cond(`"build_id" = any($%d::varchar[])`, query.BuildIds)
	}
	if query.Phases != nil {
		phases := make([]string, 0, len(query.Phases))
		for _, p := range query.Phases {
			phases = append(phases, p.String())
		}
		cond(`"phase"::text = any($%d::varchar[])`, phases)
	}
	if query.DockerHost != "" {
		cond(`"docker_host" = $%d`, query.DockerHost)
	}
	if query.Isolated != "" {
		cond(`"isolated" = $%d`, query.Isolated)
	}
	if query.ForkedFrom != "" {
		cond(`"forked_from" = $%d`, query.ForkedFrom)
	}
	if query.Owner != "" {
		cond(`"owner" = $%d`, query.Owner)
	}
	if query.Name != "" {
		cond(`"name" = $%d`, query.Name)
	}
	if query.Repo != "" {
		cond(`"repo" = lower($%d)`, query.Repo)
	}
	if query.Branch != "" {
		cond(`"branch" = lower($%d)`, query.Branch)
	}

	rows, err := m.pool.Query(
		ctx,
		`select `+columns+` from "instance" where `+strings.Join(where, " and ")+
			` order by "created_at", "instance_id"`,
		args...,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return scanAll(rows)
}

// update updates an Instance with a conditional update.
//
// When no rows are updated, it returns a dberrors.Unmatched, or a dberrors.Missing if missingIsUnmatched is false.
func (m *pgInstance) update(
	ctx context.Context, instanceId string, condition string, missingIsUnmatched bool, sql string, args ...any,
) (domain.Instance, error) {
	inst, err := scan(m.pool.QueryRow(ctx, sql+` returning `+columns, args...))
	if err == nil {
		return inst, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Instance{}, xe.Wrap(err)
	}
	if !missingIsUnmatched {
		return domain.Instance{}, xe.WrapAsOuter(dberrors.Missing{Table: "instance", Identity: instanceId}, 1)
	}
	return domain.Instance{}, xe.WrapAsOuter(dberrors.Unmatched{
		Table: "instance", Identity: instanceId, Condition: condition,
	}, 1)
}

func (m *pgInstance) SetBuild(ctx context.Context, instanceId string, buildId string, contextVersionId string) (domain.Instance, error) {
	return m.update(
		ctx, instanceId, "", false,
		`
		update "instance"
		set "build_id" = $2, "context_version_id" = $3, "updated_at" = now()
		where "instance_id" = $1 and "deleted_at" is null
		`,
		instanceId, buildId, contextVersionId,
	)
}

func (m *pgInstance) SetImagePull(
	ctx context.Context, instanceId string, buildId string, deploymentUuid string, dockerHost string,
) (domain.Instance, error) {
	return m.update(
		ctx, instanceId, "bound to build "+buildId, true,
		`
		update "instance"
		set
			"phase" = 'imagePull',
			"deployment_uuid" = $3,
			"image_pull_host" = $4,
			"image_pull_started" = now(),
			"container_error" = null,
			"updated_at" = now()
		where
			"instance_id" = $1
			and "deleted_at" is null
			and "build_id" = $2
		`,
		instanceId, buildId, deploymentUuid, dockerHost,
	)
}

func (m *pgInstance) UnsetImagePull(ctx context.Context, instanceId string, deploymentUuid string) error {
	_, err := m.update(
		ctx, instanceId, "pulling image for deployment "+deploymentUuid, true,
		`
		update "instance"
		set "image_pull_host" = null, "image_pull_started" = null, "updated_at" = now()
		where
			"instance_id" = $1
			and "deleted_at" is null
			and "deployment_uuid" = $2
			and "phase" = 'imagePull'
		`,
		instanceId, deploymentUuid,
	)
	return err
}

func (m *pgInstance) MarkAsCreating(ctx context.Context, instanceId string, deploymentUuid string) error {
	_, err := m.update(
		ctx, instanceId, "imagePull for deployment "+deploymentUuid, true,
		`
		update "instance"
		set "phase" = 'creating', "updated_at" = now()
		where
			"instance_id" = $1
			and "deleted_at" is null
			and "deployment_uuid" = $2
			and "phase" = 'imagePull'
		`,
		instanceId, deploymentUuid,
	)
	return err
}

func (m *pgInstance) ModifyContainerCreateErr(ctx context.Context, instanceId string, deploymentUuid string, message string) error {
	_, err := m.update(
		ctx, instanceId, "imagePull or creating for deployment "+deploymentUuid, true,
		`
		update "instance"
		set
			"phase" = 'createError',
			"container_error" = $3,
			"image_pull_host" = null,
			"image_pull_started" = null,
			"updated_at" = now()
		where
			"instance_id" = $1
			and "deleted_at" is null
			and "deployment_uuid" = $2
			and "phase" in ('imagePull', 'creating')
		`,
		instanceId, deploymentUuid, message,
	)
	return err
}

func (m *pgInstance) ModifyContainer(
	ctx context.Context, instanceId string, buildId string, deploymentUuid string, container domain.ContainerRef,
) (domain.Instance, domain.ContainerRef, error) {
	var updated domain.Instance
	var prev domain.ContainerRef

	err := kpool.InTx(ctx, m.pool, func(tx kpool.Tx) error {
		var host, dockerContainer *string
		if err := tx.QueryRow(
			ctx,
			`
			select "docker_host", "docker_container" from "instance"
			where
				"instance_id" = $1
				and "deleted_at" is null
				and "build_id" = $2
				and "deployment_uuid" = $3
				and "phase" = 'creating'
			for update
			`,
			instanceId, buildId, deploymentUuid,
		).Scan(&host, &dockerContainer); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return xe.Wrap(dberrors.Unmatched{
					Table: "instance", Identity: instanceId,
					Condition: fmt.Sprintf("bound to build %s and creating for deployment %s", buildId, deploymentUuid),
				})
			}
			return xe.Wrap(err)
		}
		prev = domain.ContainerRef{DockerHost: deref(host), DockerContainer: deref(dockerContainer)}

		inst, err := scan(tx.QueryRow(
			ctx,
			`
			update "instance"
			set
				"phase" = 'starting',
				"docker_host" = $2,
				"docker_container" = $3,
				"updated_at" = now()
			where "instance_id" = $1
			returning `+columns,
			instanceId, container.DockerHost, container.DockerContainer,
		))
		if err != nil {
			return xe.Wrap(err)
		}
		updated = inst
		return nil
	})
	if err != nil {
		return domain.Instance{}, domain.ContainerRef{}, err
	}
	if prev == container {
		prev = domain.ContainerRef{}
	}
	return updated, prev, nil
}

func (m *pgInstance) MarkRunning(ctx context.Context, instanceId string, dockerContainer string) (domain.Instance, error) {
	return m.update(
		ctx, instanceId, "starting with container "+dockerContainer, true,
		`
		update "instance"
		set "phase" = 'running', "updated_at" = now()
		where
			"instance_id" = $1
			and "deleted_at" is null
			and "docker_container" = $2
			and "phase" = 'starting'
		`,
		instanceId, dockerContainer,
	)
}

func (m *pgInstance) MarkStopping(ctx context.Context, instanceId string, dockerContainer string) (domain.Instance, error) {
	return m.update(
		ctx, instanceId, "running with container "+dockerContainer, true,
		`
		update "instance"
		set "phase" = 'stopping', "updated_at" = now()
		where
			"instance_id" = $1
			and "deleted_at" is null
			and "docker_container" = $2
			and "phase" = 'running'
		`,
		instanceId, dockerContainer,
	)
}

func (m *pgInstance) MarkStopped(ctx context.Context, instanceId string, dockerContainer string) (domain.Instance, error) {
	return m.update(
		ctx, instanceId, "running or stopping with container "+dockerContainer, true,
		`
		update "instance"
		set "phase" = 'stopped', "updated_at" = now()
		where
			"instance_id" = $1
			and "deleted_at" is null
			and "docker_container" = $2
			and "phase" in ('running', 'stopping')
		`,
		instanceId, dockerContainer,
	)
}

func (m *pgInstance) ClearContainer(ctx context.Context, instanceId string) (domain.ContainerRef, error) {
	var prev domain.ContainerRef
	err := kpool.InTx(ctx, m.pool, func(tx kpool.Tx) error {
		var host, container *string
		if err := tx.QueryRow(
			ctx,
			`
			select "docker_host", "docker_container" from "instance"
			where "instance_id" = $1 and "deleted_at" is null
			for update
			`,
			instanceId,
		).Scan(&host, &container); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return xe.Wrap(dberrors.Missing{Table: "instance", Identity: instanceId})
			}
			return xe.Wrap(err)
		}
		prev = domain.ContainerRef{DockerHost: deref(host), DockerContainer: deref(container)}

		if _, err := tx.Exec(
			ctx,
			`
			update "instance"
			set
				"phase" = 'none',
				"docker_host" = null,
				"docker_container" = null,
				"container_error" = null,
				"deployment_uuid" = null,
				"image_pull_host" = null,
				"image_pull_started" = null,
				"updated_at" = now()
			where "instance_id" = $1
			`,
			instanceId,
		); err != nil {
			return xe.Wrap(err)
		}
		return nil
	})
	if err != nil {
		return domain.ContainerRef{}, err
	}
	return prev, nil
}

func (m *pgInstance) ReleaseDock(ctx context.Context, instanceId string, dockerHost string) error {
	_, err := m.update(
		ctx, instanceId, "starting or running on "+dockerHost, true,
		`
		update "instance"
		set
			"phase" = 'none',
			"docker_host" = null,
			"docker_container" = null,
			"deployment_uuid" = null,
			"updated_at" = now()
		where
			"instance_id" = $1
			and "deleted_at" is null
			and "docker_host" = $2
			and "phase" in ('starting', 'running')
		`,
		instanceId, dockerHost,
	)
	return err
}

func (m *pgInstance) SetIsolation(ctx context.Context, instanceId string, isolationId string, master bool) error {
	_, err := m.update(
		ctx, instanceId, "", false,
		`
		update "instance"
		set "isolated" = $2, "is_isolation_group_master" = $3, "updated_at" = now()
		where "instance_id" = $1 and "deleted_at" is null
		`,
		instanceId, nullIfEmpty(isolationId), isolationId != "" && master,
	)
	return err
}

func (m *pgInstance) Delete(ctx context.Context, instanceId string) (domain.Instance, error) {
	return m.update(
		ctx, instanceId, "", false,
		`
		update "instance"
		set "deleted_at" = now(), "updated_at" = now()
		where "instance_id" = $1 and "deleted_at" is null
		`,
		instanceId,
	)
}
