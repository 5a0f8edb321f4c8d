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
	domerr "github.com/opst/drydock/pkg/domain/errors"
	"github.com/opst/drydock/pkg/domain/errors/dberrors"
	kdb "github.com/opst/drydock/pkg/domain/inputcluster/db"
	xe "github.com/opst/drydock/pkg/errors"
)

type pgInputCluster struct {
	pool kpool.Pool
}

var _ kdb.Interface = &pgInputCluster{}

func New(pool kpool.Pool) kdb.Interface {
	return &pgInputCluster{pool: pool}
}

const columns = `
	"input_cluster_config_id", "auto_isolation_config_id",
	"repo", "branch", "is_testing", "files",
	"parent_input_cluster_config_id", "created_by_user", "owned_by_org",
	"created_at", "deleted_at"
`

func scan(row pgx.Row) (domain.InputClusterConfig, error) {
	var icc domain.InputClusterConfig
	var parent *string
	var deletedAt pgtype.Timestamptz
	if err := row.Scan(
		&icc.InputClusterConfigId, &icc.AutoIsolationConfigId,
		&icc.Repo, &icc.Branch, &icc.IsTesting, &icc.Files,
		&parent, &icc.CreatedByUser, &icc.OwnedByOrg,
		&icc.CreatedAt, &deletedAt,
	); err != nil {
		return domain.InputClusterConfig{}, err
	}
	if parent != nil {
		icc.ParentInputClusterConfigId = *parent
	}
	if deletedAt.Status == pgtype.Present {
		t := deletedAt.Time
		icc.Deleted = &t
	}
	return icc, nil
}

func (m *pgInputCluster) FindSimilar(ctx context.Context, similarity domain.ClusterSimilarity) ([]domain.InputClusterConfig, error) {
	key := domain.NewClusterSimilarity(similarity.Repo, similarity.Branch, similarity.IsTesting, similarity.Files)
	rows, err := m.pool.Query(
		ctx,
		`
		select `+columns+` from "input_cluster_config"
		where
			"deleted_at" is null
			and "repo" = $1
			and "branch" = $2
			and "is_testing" = $3
			and "files" = $4::varchar[]
		order by "created_at" desc, "input_cluster_config_id"
		`,
		key.Repo, key.Branch, key.IsTesting, key.Files,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer rows.Close()

	ret := []domain.InputClusterConfig{}
	for rows.Next() {
		icc, err := scan(rows)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		ret = append(ret, icc)
	}
	if err := rows.Err(); err != nil {
		return nil, xe.Wrap(err)
	}
	return ret, nil
}

func (m *pgInputCluster) New(ctx context.Context, config kdb.NewInputClusterConfig) (domain.InputClusterConfig, error) {
	key := domain.NewClusterSimilarity(
		config.Similarity.Repo, config.Similarity.Branch, config.Similarity.IsTesting, config.Similarity.Files,
	)
	var parent *string
	if config.ParentInputClusterConfigId != "" {
		parent = &config.ParentInputClusterConfigId
	}

	icc, err := scan(m.pool.QueryRow(
		ctx,
		`
		insert into "input_cluster_config" (
			"input_cluster_config_id", "auto_isolation_config_id",
			"repo", "branch", "is_testing", "files",
			"parent_input_cluster_config_id", "created_by_user", "owned_by_org"
		)
		values ($1, $2, $3, $4, $5, $6::varchar[], $7, $8, $9)
		returning `+columns,
		uuid.NewString(), config.AutoIsolationConfigId,
		key.Repo, key.Branch, key.IsTesting, key.Files,
		parent, config.CreatedByUser, config.OwnedByOrg,
	))
	if err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) {
			switch pgerr.Code {
			case pgerrcode.UniqueViolation:
				return domain.InputClusterConfig{}, fmt.Errorf(
					"%w: similar input cluster config exists (%s@%s)", domerr.ErrConflict, key.Repo, key.Branch,
				)
			case pgerrcode.ForeignKeyViolation:
				return domain.InputClusterConfig{}, xe.Wrap(dberrors.Missing{
					Table: pgerr.TableName, Identity: pgerr.Detail,
				})
			}
		}
		return domain.InputClusterConfig{}, xe.Wrap(err)
	}
	return icc, nil
}

func (m *pgInputCluster) Get(ctx context.Context, inputClusterConfigId string) (domain.InputClusterConfig, error) {
	icc, err := scan(m.pool.QueryRow(
		ctx,
		`
		select `+columns+` from "input_cluster_config"
		where "input_cluster_config_id" = $1 and "deleted_at" is null
		`,
		inputClusterConfigId,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.InputClusterConfig{}, xe.Wrap(dberrors.Missing{
				Table: "input_cluster_config", Identity: inputClusterConfigId,
			})
		}
		return domain.InputClusterConfig{}, xe.Wrap(err)
	}
	return icc, nil
}

func (m *pgInputCluster) Delete(ctx context.Context, inputClusterConfigId string) error {
	tag, err := m.pool.Exec(
		ctx,
		`
		update "input_cluster_config" set "deleted_at" = now()
		where "input_cluster_config_id" = $1 and "deleted_at" is null
		`,
		inputClusterConfigId,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return xe.Wrap(dberrors.Missing{Table: "input_cluster_config", Identity: inputClusterConfigId})
	}
	return nil
}
