package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/opst/drydock/pkg/domain"
	domerr "github.com/opst/drydock/pkg/domain/errors"
	"github.com/opst/drydock/pkg/domain/errors/dberrors"
	jobmock "github.com/opst/drydock/pkg/domain/job/db/mock"
	"github.com/opst/drydock/pkg/jobs"
	"github.com/opst/drydock/pkg/utils/try"
)

const aUuid = "5b5b8f8e-4e9a-4a59-9a5e-0c7d8a2f0c11"

func TestDecode(t *testing.T) {
	t.Run("it decodes a valid payload", func(t *testing.T) {
		got := try.To(jobs.Decode[jobs.InstanceContainerCreate]([]byte(
			`{"instanceId":"inst-1","buildId":"b-1","contextVersionId":"cv-1","deploymentUuid":"` + aUuid + `"}`,
		))).OrFatal(t)
		want := jobs.InstanceContainerCreate{
			InstanceId: "inst-1", BuildId: "b-1", ContextVersionId: "cv-1", DeploymentUuid: aUuid,
		}
		if got != want {
			t.Errorf("unmatch:\n===actual===\n%+v\n===expected===\n%+v", got, want)
		}
	})

	for name, payload := range map[string]string{
		"malformed json":   `{"instanceId":`,
		"missing field":    `{"instanceId":"inst-1","buildId":"b-1","deploymentUuid":"` + aUuid + `"}`,
		"not a uuid":       `{"instanceId":"inst-1","buildId":"b-1","contextVersionId":"cv-1","deploymentUuid":"xxx"}`,
		"wrong field type": `{"instanceId":1,"buildId":"b-1","contextVersionId":"cv-1","deploymentUuid":"` + aUuid + `"}`,
	} {
		t.Run(name+" is a validation error", func(t *testing.T) {
			_, err := jobs.Decode[jobs.InstanceContainerCreate]([]byte(payload))
			if !errors.Is(err, domerr.ErrValidation) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	t.Run("nested payloads are validated", func(t *testing.T) {
		_, err := jobs.Decode[jobs.ClusterInstanceCreated]([]byte(`{
			"autoIsolationConfigId": "aic-1", "inputClusterConfigId": "icc-1",
			"service": {"name": "api", "build": {"contextId": "ctx-1", "dockerfileHash": "h", "files": [{"path": "a"}]}},
			"owner": "org-1", "createdBy": "user-1", "triggeredAction": "cluster", "instanceId": "inst-1"
		}`))
		if !errors.Is(err, domerr.ErrValidation) {
			t.Errorf("file without hash should be rejected: %v", err)
		}
	})

	t.Run("zero time is rejected", func(t *testing.T) {
		err := jobs.Validate(jobs.BuildContainerCreated{
			ContextVersionId: "cv-1", ContextVersionBuildId: "b-1",
			DockerHost: "dock-1", DockerContainer: "c-1", DockerTag: "t",
		})
		if !errors.Is(err, domerr.ErrValidation) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestClassify(t *testing.T) {
	theory := func(when error, then domain.JobStatus) func(*testing.T) {
		return func(t *testing.T) {
			if got := jobs.Classify(when).Status(); got != then {
				t.Errorf("got %s, want %s", got, then)
			}
		}
	}

	t.Run("nil", theory(nil, domain.JobDone))
	t.Run("missing", theory(dberrors.Missing{Table: "instance", Identity: "inst-1"}, domain.JobDropped))
	t.Run("stale", theory(fmt.Errorf("%w: moved", domerr.ErrStale), domain.JobDropped))
	t.Run("unmatched", theory(fmt.Errorf("x: %w", domerr.ErrInvalidStateChanging), domain.JobDropped))
	t.Run("validation", theory(domerr.ErrValidation, domain.JobDropped))
	t.Run("not permitted", theory(domerr.ErrNotPermitted, domain.JobDropped))
	t.Run("duplicate dependency", theory(domerr.ErrDuplicateDependency, domain.JobDropped))
	t.Run("others", theory(errors.New("connection refused"), domain.JobQueued))
	t.Run("canceled", theory(context.Canceled, domain.JobQueued))

	transient := errors.New("queue: connection reset")
	missing := dberrors.Missing{Table: "instance", Identity: "inst-1"}
	t.Run("joined, all fatal", theory(
		errors.Join(missing, fmt.Errorf("%w: moved", domerr.ErrStale)), domain.JobDropped,
	))
	t.Run("joined, one transient", theory(errors.Join(missing, transient), domain.JobQueued))
	t.Run("joined, transient wrapped", theory(
		fmt.Errorf("redeploy: %w", errors.Join(transient, missing)), domain.JobQueued,
	))
	t.Run("many %w, one transient", theory(
		fmt.Errorf("%w: teardown: %w", domerr.ErrInvalidStateChanging, transient), domain.JobQueued,
	))
	t.Run("fatal wrapping a joined error", theory(
		fmt.Errorf("%w: %v", domerr.ErrMissing, errors.Join(transient)), domain.JobDropped,
	))
}

func TestRouter(t *testing.T) {
	ctx := context.Background()
	handled := []jobs.DockRemoved{}
	var fails error

	testee := jobs.Router{
		jobs.KindDockRemoved: jobs.Handle(func(ctx context.Context, p jobs.DockRemoved) error {
			handled = append(handled, p)
			return fails
		}),
		jobs.KindDockPurged: jobs.Ignore[jobs.DockPurged](),
	}

	if kinds := testee.Kinds(); len(kinds) != 2 || kinds[0] != jobs.KindDockPurged || kinds[1] != jobs.KindDockRemoved {
		t.Errorf("unexpected kinds: %v", kinds)
	}

	t.Run("it dispatches by kind", func(t *testing.T) {
		out := testee.Run(ctx, domain.Job{Kind: jobs.KindDockRemoved, Payload: []byte(`{"host":"dock-1"}`)})
		if out.Status() != domain.JobDone {
			t.Errorf("unexpected outcome: %s", out)
		}
		if len(handled) != 1 || handled[0].Host != "dock-1" {
			t.Errorf("unexpected handled: %v", handled)
		}
	})

	t.Run("invalid payload is dropped without calling handler", func(t *testing.T) {
		handled = nil
		out := testee.Run(ctx, domain.Job{Kind: jobs.KindDockRemoved, Payload: []byte(`{}`)})
		if out.Status() != domain.JobDropped {
			t.Errorf("unexpected outcome: %s", out)
		}
		if len(handled) != 0 {
			t.Errorf("handler should not be called")
		}
	})

	t.Run("unknown kind is dropped", func(t *testing.T) {
		out := testee.Run(ctx, domain.Job{Kind: "no.such.kind", Payload: []byte(`{}`)})
		if out.Status() != domain.JobDropped {
			t.Errorf("unexpected outcome: %s", out)
		}
	})

	t.Run("transient error is retried", func(t *testing.T) {
		fails = errors.New("database is down")
		defer func() { fails = nil }()
		out := testee.Run(ctx, domain.Job{Kind: jobs.KindDockRemoved, Payload: []byte(`{"host":"dock-1"}`)})
		if out.Status() != domain.JobQueued || !errors.Is(out.Err(), fails) {
			t.Errorf("unexpected outcome: %s", out)
		}
	})

	t.Run("ignored kinds are acknowledged", func(t *testing.T) {
		out := testee.Run(ctx, domain.Job{Kind: jobs.KindDockPurged, Payload: []byte(`{"host":"dock-1","deploymentUuid":"` + aUuid + `"}`)})
		if out.Status() != domain.JobDone {
			t.Errorf("unexpected outcome: %s", out)
		}
	})
}

func TestPublisher(t *testing.T) {
	ctx := context.Background()

	t.Run("it publishes encoded payload with options", func(t *testing.T) {
		queue := jobmock.NewJobInterface()
		queue.Impl.Publish = func(ctx context.Context, kind string, payload []byte, options domain.PublishOptions) (bool, error) {
			return true, nil
		}
		testee := jobs.NewPublisher(queue)

		before := time.Now()
		ok := try.To(testee.Publish(
			ctx, jobs.InstanceRedeploy{InstanceId: "inst-1", DeploymentUuid: aUuid},
			jobs.WithDedupeKey("instance.redeploy/inst-1/dock-1"),
			jobs.After(time.Minute),
			jobs.WithMaxAttempts(3),
		)).OrFatal(t)
		if !ok {
			t.Error("it should be published")
		}

		if queue.Calls.Publish.Times() != 1 {
			t.Fatalf("Publish is called %d times", queue.Calls.Publish.Times())
		}
		got := queue.Calls.Publish.Last()
		if got.Kind != jobs.KindInstanceRedeploy {
			t.Errorf("unexpected kind: %s", got.Kind)
		}
		decoded := try.To(jobs.Decode[jobs.InstanceRedeploy](got.Payload)).OrFatal(t)
		if decoded.InstanceId != "inst-1" || decoded.DeploymentUuid != aUuid {
			t.Errorf("unexpected payload: %+v", decoded)
		}
		if got.Options.DedupeKey != "instance.redeploy/inst-1/dock-1" || got.Options.MaxAttempts != 3 {
			t.Errorf("unexpected options: %+v", got.Options)
		}
		if got.Options.VisibleAfter.Before(before.Add(time.Minute)) {
			t.Errorf("unexpected visibleAfter: %v", got.Options.VisibleAfter)
		}
	})

	t.Run("invalid payload is not published", func(t *testing.T) {
		queue := jobmock.NewJobInterface()
		testee := jobs.NewPublisher(queue)
		_, err := testee.Publish(ctx, jobs.InstanceRedeploy{InstanceId: "inst-1"})
		if !errors.Is(err, domerr.ErrValidation) {
			t.Errorf("unexpected error: %v", err)
		}
		if queue.Calls.Publish.Times() != 0 {
			t.Error("Publish should not be called")
		}
	})
}
