package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/drydock/pkg/conn/postgres/pool"
	"github.com/opst/drydock/pkg/domain"
	kdb "github.com/opst/drydock/pkg/domain/contextversion/db"
	domerr "github.com/opst/drydock/pkg/domain/errors"
	"github.com/opst/drydock/pkg/domain/errors/dberrors"
	xe "github.com/opst/drydock/pkg/errors"
)

type pgContextVersion struct {
	pool kpool.Pool
}

var _ kdb.Interface = &pgContextVersion{}

func New(pool kpool.Pool) kdb.Interface {
	return &pgContextVersion{pool: pool}
}

const columns = `
	"context_version_id", "context_id", "owner", "created_by",
	"fingerprint", "files"::text, "dockerfile_hash", "repo", "branch", "commit", "is_testing",
	"state",
	"build_id", "docker_host", "docker_container", "docker_tag",
	"build_started", "build_completed",
	"triggered_action", "triggered_by", "message", "log", "exit_code",
	"dock_removed", "recovered", "created_at"
`

func scan(row pgx.Row) (domain.ContextVersion, error) {
	var cv domain.ContextVersion
	var files, state string
	var buildId, host, container, tag, action, by, message, log *string
	var started, completed pgtype.Timestamptz
	var exitCode *int

	if err := row.Scan(
		&cv.ContextVersionId, &cv.ContextId, &cv.Owner, &cv.CreatedBy,
		&cv.Fingerprint, &files, &cv.Inputs.DockerfileHash,
		&cv.Inputs.AppCodeVersion.Repo, &cv.Inputs.AppCodeVersion.Branch, &cv.Inputs.AppCodeVersion.Commit,
		&cv.Inputs.IsTesting,
		&state,
		&buildId, &host, &container, &tag,
		&started, &completed,
		&action, &by, &message, &log, &exitCode,
		&cv.DockRemoved, &cv.Recovered, &cv.CreatedAt,
	); err != nil {
		return domain.ContextVersion{}, err
	}

	if err := json.Unmarshal([]byte(files), &cv.Inputs.Files); err != nil {
		return domain.ContextVersion{}, xe.Wrap(err)
	}
	st, err := domain.AsContextVersionState(state)
	if err != nil {
		return domain.ContextVersion{}, xe.Wrap(err)
	}
	cv.State = st

	cv.Build = domain.ContextVersionBuild{
		BuildId: deref(buildId),
		BuildContainer: domain.BuildContainer{
			DockerHost:      deref(host),
			DockerContainer: deref(container),
			DockerTag:       deref(tag),
		},
		TriggeredAction: deref(action),
		TriggeredBy:     deref(by),
		Message:         deref(message),
		Log:             deref(log),
		ExitCode:        exitCode,
	}
	if started.Status == pgtype.Present {
		t := started.Time
		cv.Build.Started = &t
	}
	if completed.Status == pgtype.Present {
		t := completed.Time
		cv.Build.Completed = &t
	}

	return cv, nil
}

func scanAll(rows pgx.Rows) ([]domain.ContextVersion, error) {
	defer rows.Close()
	ret := []domain.ContextVersion{}
	for rows.Next() {
		cv, err := scan(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, cv)
	}
	return ret, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func statesOf(ss []domain.ContextVersionState) []string {
	ret := make([]string, 0, len(ss))
	for _, s := range ss {
		ret = append(ret, s.String())
	}
	return ret
}

func ids(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	ret := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ret = append(ret, id)
	}
	return ret, rows.Err()
}

func (m *pgContextVersion) New(ctx context.Context, cv kdb.NewContextVersion) (domain.ContextVersion, error) {
	inputs := cv.Inputs.Normalized()
	files, err := json.Marshal(inputs.Files)
	if err != nil {
		return domain.ContextVersion{}, xe.Wrap(err)
	}

	created, err := scan(m.pool.QueryRow(
		ctx,
		`
		insert into "context_version" (
			"context_version_id", "context_id", "owner", "created_by",
			"fingerprint", "files", "dockerfile_hash",
			"repo", "branch", "commit", "is_testing"
		)
		values ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10, $11)
		returning `+columns,
		uuid.NewString(), cv.ContextId, cv.Owner, cv.CreatedBy,
		cv.Fingerprint, string(files), inputs.DockerfileHash,
		inputs.AppCodeVersion.Repo, inputs.AppCodeVersion.Branch, inputs.AppCodeVersion.Commit,
		inputs.IsTesting,
	))
	if err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UniqueViolation {
			return domain.ContextVersion{}, fmt.Errorf(
				"%w: context version with fingerprint %s is in progress", domerr.ErrConflict, cv.Fingerprint,
			)
		}
		return domain.ContextVersion{}, xe.Wrap(err)
	}
	return created, nil
}

func (m *pgContextVersion) Get(ctx context.Context, contextVersionIds []string) (map[string]domain.ContextVersion, error) {
	rows, err := m.pool.Query(
		ctx,
		`select `+columns+` from "context_version" where "context_version_id" = any($1::varchar[])`,
		contextVersionIds,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	cvs, err := scanAll(rows)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	ret := make(map[string]domain.ContextVersion, len(cvs))
	for _, cv := range cvs {
		ret[cv.ContextVersionId] = cv
	}
	return ret, nil
}

func (m *pgContextVersion) FindReusable(ctx context.Context, fingerprint string) ([]domain.ContextVersion, error) {
	rows, err := m.pool.Query(
		ctx,
		`
		select `+columns+` from "context_version"
		where
			"fingerprint" = $1
			and "state" <> 'buildErrored'
			and not ("dock_removed" and "state" in ('created', 'buildStarting', 'buildStarted'))
		order by "created_at" desc, "context_version_id"
		`,
		fingerprint,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	cvs, err := scanAll(rows)
	return cvs, xe.Wrap(err)
}

func (m *pgContextVersion) FindByBuild(ctx context.Context, buildId string) ([]domain.ContextVersion, error) {
	rows, err := m.pool.Query(
		ctx,
		`select `+columns+` from "context_version" where "build_id" = $1 order by "context_version_id"`,
		buildId,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	cvs, err := scanAll(rows)
	return cvs, xe.Wrap(err)
}

func (m *pgContextVersion) MarkRequested(
	ctx context.Context, contextVersionId string, triggeredAction string, triggeredBy string,
) (domain.ContextVersion, bool, error) {
	cv, err := scan(m.pool.QueryRow(
		ctx,
		`
		update "context_version"
		set
			"build_id" = $2,
			"build_started" = now(),
			"triggered_action" = $3,
			"triggered_by" = $4
		where
			"context_version_id" = $1
			and "state" = 'created'
			and "build_started" is null
		returning `+columns,
		contextVersionId, uuid.NewString(), triggeredAction, triggeredBy,
	))
	if err == nil {
		return cv, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.ContextVersion{}, false, xe.Wrap(err)
	}

	found, err := m.Get(ctx, []string{contextVersionId})
	if err != nil {
		return domain.ContextVersion{}, false, err
	}
	cv, ok := found[contextVersionId]
	if !ok {
		return domain.ContextVersion{}, false, xe.Wrap(dberrors.Missing{
			Table: "context_version", Identity: contextVersionId,
		})
	}
	return cv, false, nil
}

func (m *pgContextVersion) MarkBuildStarting(ctx context.Context, buildId string, container domain.BuildContainer) ([]string, error) {
	rows, err := m.pool.Query(
		ctx,
		`
		update "context_version"
		set
			"state" = 'buildStarting',
			"docker_host" = $2,
			"docker_container" = $3,
			"docker_tag" = $4
		where
			"build_id" = $1
			and "build_started" is not null
			and "build_completed" is null
			and "state"::text = any($5::varchar[])
		returning "context_version_id"
		`,
		buildId, container.DockerHost, container.DockerContainer, container.DockerTag,
		statesOf(domain.StatesTransitableTo(domain.BuildStarting)),
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return unmatchedIfEmpty(ids(rows))(buildId, "build is started, not completed and not buildStarted")
}

func (m *pgContextVersion) MarkBuildStarted(ctx context.Context, buildId string, dockerContainer string) ([]string, error) {
	rows, err := m.pool.Query(
		ctx,
		`
		update "context_version"
		set "state" = 'buildStarted'
		where
			"build_id" = $1
			and "docker_container" = $2
			and "build_completed" is null
			and "state"::text = any($3::varchar[])
		returning "context_version_id"
		`,
		buildId, dockerContainer,
		statesOf(domain.StatesTransitableTo(domain.BuildStarted)),
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return unmatchedIfEmpty(ids(rows))(buildId, "buildStarting with container "+dockerContainer)
}

func (m *pgContextVersion) Finish(
	ctx context.Context, buildId string, dockerContainer string, outcome domain.BuildOutcome,
) ([]string, error) {
	to := outcome.State()
	rows, err := m.pool.Query(
		ctx,
		`
		update "context_version"
		set
			"state" = $3,
			"build_completed" = now(),
			"exit_code" = $4,
			"message" = $5,
			"log" = $6
		where
			"build_id" = $1
			and "docker_container" = $2
			and "build_completed" is null
			and "state"::text = any($7::varchar[])
		returning "context_version_id"
		`,
		buildId, dockerContainer, to.String(),
		outcome.ExitCode, outcome.Message, outcome.Log,
		statesOf(domain.StatesTransitableTo(to)),
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return unmatchedIfEmpty(ids(rows))(buildId, "not finished, with container "+dockerContainer)
}

func unmatchedIfEmpty(ids []string, err error) func(identity string, condition string) ([]string, error) {
	return func(identity string, condition string) ([]string, error) {
		if err != nil {
			return nil, xe.Wrap(err)
		}
		if len(ids) == 0 {
			return nil, xe.WrapAsOuter(dberrors.Unmatched{
				Table: "context_version", Identity: identity, Condition: condition,
			}, 1)
		}
		return ids, nil
	}
}

func (m *pgContextVersion) ErrorBuild(ctx context.Context, contextVersionId string, message string) error {
	return kpool.InTx(ctx, m.pool, func(tx kpool.Tx) error {
		var state string
		if err := tx.QueryRow(
			ctx,
			`select "state" from "context_version" where "context_version_id" = $1 for update`,
			contextVersionId,
		).Scan(&state); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return xe.Wrap(dberrors.Missing{Table: "context_version", Identity: contextVersionId})
			}
			return xe.Wrap(err)
		}

		from, err := domain.AsContextVersionState(state)
		if err != nil {
			return xe.Wrap(err)
		}
		if !domain.CanTransit(from, domain.BuildErrored) {
			return xe.Wrap(dberrors.Unmatched{
				Table: "context_version", Identity: contextVersionId,
				Condition: fmt.Sprintf("not terminal (but %s)", from),
			})
		}

		if _, err := tx.Exec(
			ctx,
			`
			update "context_version"
			set
				"state" = 'buildErrored',
				"build_completed" = now(),
				"message" = $2
			where "context_version_id" = $1
			`,
			contextVersionId, message,
		); err != nil {
			return xe.Wrap(err)
		}
		return nil
	})
}

func (m *pgContextVersion) MarkDockRemoved(ctx context.Context, dockerHost string) ([]domain.ContextVersion, error) {
	rows, err := m.pool.Query(
		ctx,
		`
		update "context_version" set "dock_removed" = true
		where "docker_host" = $1
		returning `+columns,
		dockerHost,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	cvs, err := scanAll(rows)
	return cvs, xe.Wrap(err)
}

func (m *pgContextVersion) Recover(ctx context.Context, contextVersionId string) error {
	tag, err := m.pool.Exec(
		ctx,
		`
		update "context_version"
		set "dock_removed" = false, "recovered" = true
		where "context_version_id" = $1
		`,
		contextVersionId,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return xe.Wrap(dberrors.Missing{Table: "context_version", Identity: contextVersionId})
	}
	return nil
}

func (m *pgContextVersion) Delete(ctx context.Context, contextVersionId string) error {
	return kpool.InTx(ctx, m.pool, func(tx kpool.Tx) error {
		var inUse bool
		if err := tx.QueryRow(
			ctx,
			`
			with "target" as (
				select "context_version_id" from "context_version"
				where "context_version_id" = $1
				for update
			)
			select
				exists (
					select 1 from "instance"
					where "context_version_id" in (table "target") and "deleted_at" is null
				)
				or exists (
					select 1 from "build_context_version"
					where "context_version_id" in (table "target")
				)
			from "target"
			`,
			contextVersionId,
		).Scan(&inUse); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return xe.Wrap(dberrors.Missing{Table: "context_version", Identity: contextVersionId})
			}
			return xe.Wrap(err)
		}
		if inUse {
			return fmt.Errorf("%w: context version %s is referenced", domerr.ErrInUse, contextVersionId)
		}

		if _, err := tx.Exec(
			ctx, `delete from "context_version" where "context_version_id" = $1`, contextVersionId,
		); err != nil {
			return xe.Wrap(err)
		}
		return nil
	})
}
