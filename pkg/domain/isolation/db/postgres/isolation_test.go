package postgres_test

import (
	"context"
	"errors"
	"testing"

	kpool "github.com/opst/drydock/pkg/conn/postgres/pool"
	"github.com/opst/drydock/pkg/conn/postgres/pool/testenv"
	"github.com/opst/drydock/pkg/domain"
	domerr "github.com/opst/drydock/pkg/domain/errors"
	kdb "github.com/opst/drydock/pkg/domain/isolation/db"
	kpgiso "github.com/opst/drydock/pkg/domain/isolation/db/postgres"
	"github.com/opst/drydock/pkg/utils/try"
)

func insertInstances(ctx context.Context, t *testing.T, pool kpool.Pool, phases map[string]domain.ContainerPhase) {
	t.Helper()
	if _, err := pool.Exec(
		ctx,
		`
		insert into "context_version" (
			"context_version_id", "context_id", "owner", "created_by", "fingerprint", "dockerfile_hash", "state"
		) values ('cv-1', 'context-1', 'org-1', 'user-1', 'fp-1', 'df', 'buildCompleted');
		`,
	); err != nil {
		t.Fatal(err)
	}
	if _, err := pool.Exec(
		ctx, `insert into "build" ("build_id", "owner", "created_by") values ('build-1', 'org-1', 'user-1')`,
	); err != nil {
		t.Fatal(err)
	}
	for id, phase := range phases {
		if _, err := pool.Exec(
			ctx,
			`
			insert into "instance" (
				"instance_id", "name", "owner", "created_by", "build_id", "context_version_id", "phase"
			) values ($1, $1, 'org-1', 'user-1', 'build-1', 'cv-1', $2)
			`,
			id, phase.String(),
		); err != nil {
			t.Fatal(err)
		}
	}
}

func setPhase(ctx context.Context, t *testing.T, pool kpool.Pool, instanceId string, phase domain.ContainerPhase) {
	t.Helper()
	if _, err := pool.Exec(
		ctx, `update "instance" set "phase" = $2 where "instance_id" = $1`, instanceId, phase.String(),
	); err != nil {
		t.Fatal(err)
	}
}

func TestIsolation_Kill(t *testing.T) {
	ctx := context.Background()
	poolBroaker := testenv.NewPoolBroaker(ctx, t)

	pool := poolBroaker.GetPool(ctx, t)
	insertInstances(ctx, t, pool, map[string]domain.ContainerPhase{
		"master": domain.PhaseRunning,
		"dep":    domain.PhaseRunning,
		"other":  domain.PhaseRunning,
	})
	testee := kpgiso.New(pool)

	iso := try.To(testee.New(ctx, kdb.NewIsolation{
		Owner: "org-1", CreatedBy: "user-1", MasterInstanceId: "master", RedeployOnKilled: true,
	})).OrFatal(t)
	if iso.State != domain.IsolationNone {
		t.Errorf("unexpected state: %s", iso.State)
	}

	killing := try.To(testee.SetKilling(ctx, iso.IsolationId, []string{"master", "dep"})).OrFatal(t)
	if killing.State != domain.IsolationKilling || len(killing.KillTargets) != 2 {
		t.Errorf("unexpected: %+v", killing)
	}
	if _, err := testee.SetKilling(ctx, iso.IsolationId, []string{"master"}); !errors.Is(err, domerr.ErrInvalidStateChanging) {
		t.Errorf("unexpected error for double kill: %v", err)
	}

	if found := try.To(testee.FindKilling(ctx, "dep")).OrFatal(t); len(found) != 1 || found[0].IsolationId != iso.IsolationId {
		t.Errorf("unexpected killing isolations of a target: %+v", found)
	}
	if found := try.To(testee.FindKilling(ctx, "other")).OrFatal(t); len(found) != 0 {
		t.Errorf("unexpected killing isolations of a non-target: %+v", found)
	}

	setPhase(ctx, t, pool, "master", domain.PhaseStopped)
	if got, changed, err := testee.MarkKilledIfAllStopped(ctx, iso.IsolationId); err != nil {
		t.Fatal(err)
	} else if changed || got.State != domain.IsolationKilling {
		t.Errorf("killed while a member is running: %+v", got)
	}

	setPhase(ctx, t, pool, "dep", domain.PhaseStopped)
	got, changed, err := testee.MarkKilledIfAllStopped(ctx, iso.IsolationId)
	if err != nil {
		t.Fatal(err)
	}
	if !changed || got.State != domain.IsolationKilled {
		t.Errorf("not killed: %+v", got)
	}
	if _, changed, err := testee.MarkKilledIfAllStopped(ctx, iso.IsolationId); err != nil || changed {
		t.Errorf("killed twice: (%v, %v)", changed, err)
	}

	if found := try.To(testee.FindKilling(ctx, "dep")).OrFatal(t); len(found) != 0 {
		t.Errorf("a killed isolation is still killing: %+v", found)
	}

	redeployed := try.To(testee.SetRedeployed(ctx, iso.IsolationId)).OrFatal(t)
	if redeployed.State != domain.IsolationNone || len(redeployed.KillTargets) != 0 {
		t.Errorf("unexpected: %+v", redeployed)
	}

	try.To(testee.Delete(ctx, iso.IsolationId)).OrFatal(t)
	if _, err := testee.Get(ctx, iso.IsolationId); !errors.Is(err, domerr.ErrMissing) {
		t.Errorf("unexpected error: %v", err)
	}
}
