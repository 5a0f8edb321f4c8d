package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/opst/drydock/pkg/domain/errors/runtimeerrors"
)

type fakeClient struct {
	pull    func(ref string) (io.ReadCloser, error)
	start   func(id string) error
	inspect func(id string) (ContainerState, error)
	logs    func(id string) (io.ReadCloser, error)
}

var _ DockerClient = &fakeClient{}

func (f *fakeClient) PullImage(ctx context.Context, ref string) (io.ReadCloser, error) {
	return f.pull(ref)
}

func (f *fakeClient) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	return "", errors.New("[MOCK] not implemented")
}

func (f *fakeClient) StartContainer(ctx context.Context, id string) error {
	return f.start(id)
}

func (f *fakeClient) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	return errors.New("[MOCK] not implemented")
}

func (f *fakeClient) RemoveContainer(ctx context.Context, id string) error {
	return errors.New("[MOCK] not implemented")
}

func (f *fakeClient) InspectContainer(ctx context.Context, id string) (ContainerState, error) {
	return f.inspect(id)
}

func (f *fakeClient) Logs(ctx context.Context, id string) (io.ReadCloser, error) {
	return f.logs(id)
}

func connectTo(c DockerClient) Connect {
	return func(string) (DockerClient, error) { return c, nil }
}

func multiplexed(t *testing.T, stdout string, stderr string) io.ReadCloser {
	t.Helper()
	buf := new(bytes.Buffer)
	if _, err := stdcopy.NewStdWriter(buf, stdcopy.Stdout).Write([]byte(stdout)); err != nil {
		t.Fatal(err)
	}
	if _, err := stdcopy.NewStdWriter(buf, stdcopy.Stderr).Write([]byte(stderr)); err != nil {
		t.Fatal(err)
	}
	return io.NopCloser(buf)
}

func TestEngineAddress(t *testing.T) {
	for _, c := range []struct {
		host string
		port int
		want string
	}{
		{host: "http://10.0.0.1:4242", port: 2375, want: "tcp://10.0.0.1:4242"},
		{host: "10.0.0.1", port: 4242, want: "tcp://10.0.0.1:4242"},
		{host: "10.0.0.1:2375", port: 4242, want: "tcp://10.0.0.1:2375"},
		{host: "https://dock-1.example.com", port: 4242, want: "tcp://dock-1.example.com:4242"},
	} {
		t.Run(c.host, func(t *testing.T) {
			got, err := EngineAddress(c.host, c.port)
			if err != nil {
				t.Fatal(err)
			}
			if got != c.want {
				t.Errorf("got %s, want %s", got, c.want)
			}
		})
	}

	t.Run("empty host is rejected", func(t *testing.T) {
		if _, err := EngineAddress("http://", 4242); err == nil {
			t.Error("expected error")
		}
	})
}

func TestRuntime_GetBuildInfo(t *testing.T) {
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	type When struct {
		state  ContainerState
		stdout string
		stderr string
	}
	type Then struct {
		info BuildInfo
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			client := &fakeClient{
				inspect: func(id string) (ContainerState, error) {
					if id != "container-1" {
						t.Errorf("unexpected container: %s", id)
					}
					return when.state, nil
				},
				logs: func(id string) (io.ReadCloser, error) {
					return multiplexed(t, when.stdout, when.stderr), nil
				},
			}
			testee := NewRuntime(connectTo(client), time.Second)

			got, err := testee.GetBuildInfo(context.Background(), "dock-1", "container-1")
			if err != nil {
				t.Fatal(err)
			}
			if got != then.info {
				t.Errorf("unmatch:\n===actual===\n%+v\n===expected===\n%+v", got, then.info)
			}
		}
	}

	t.Run("successful build", theory(
		When{
			state:  ContainerState{ExitCode: 0, Created: created},
			stdout: "step 1/2\n", stderr: "step 2/2\n",
		},
		Then{info: BuildInfo{ExitCode: 0, Log: "step 1/2\nstep 2/2\n", Created: created}},
	))
	t.Run("non-zero exit code", theory(
		When{state: ContainerState{ExitCode: 1, Created: created}, stderr: "boom\n"},
		Then{info: BuildInfo{ExitCode: 1, Log: "boom\n", Created: created}},
	))
	t.Run("failure marker with exit code 0", theory(
		When{state: ContainerState{ExitCode: 0, Created: created}, stdout: FailureMarker + "\n"},
		Then{info: BuildInfo{ExitCode: 0, Failed: true, Log: FailureMarker + "\n", Created: created}},
	))
	t.Run("OOM killed", theory(
		When{state: ContainerState{ExitCode: 137, OOMKilled: true, Created: created}},
		Then{info: BuildInfo{ExitCode: 137, Failed: true, Created: created}},
	))
	t.Run("runtime error", theory(
		When{state: ContainerState{ExitCode: 0, Error: "mount failed", Created: created}},
		Then{info: BuildInfo{ExitCode: 0, Failed: true, Created: created}},
	))

	t.Run("long logs are truncated from head", func(t *testing.T) {
		long := strings.Repeat("x", maxLogBytes) + "tail"
		client := &fakeClient{
			inspect: func(string) (ContainerState, error) { return ContainerState{}, nil },
			logs:    func(string) (io.ReadCloser, error) { return multiplexed(t, long, ""), nil },
		}
		got, err := NewRuntime(connectTo(client), time.Second).GetBuildInfo(context.Background(), "dock-1", "c")
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Log) != maxLogBytes || !strings.HasSuffix(got.Log, "tail") {
			t.Errorf("unexpected log: len=%d", len(got.Log))
		}
	})
}

func TestRuntime_ErrorClassification(t *testing.T) {
	type Then struct {
		missing     bool
		conflict    bool
		unavailable bool
	}
	theory := func(when error, then Then) func(*testing.T) {
		return func(t *testing.T) {
			client := &fakeClient{start: func(string) error { return when }}
			err := NewRuntime(connectTo(client), time.Second).StartContainer(context.Background(), "dock-1", "c")
			if err == nil {
				t.Fatal("expected error")
			}
			if runtimeerrors.AsMissing(err) != then.missing {
				t.Errorf("missing: %v", err)
			}
			if runtimeerrors.AsConflict(err) != then.conflict {
				t.Errorf("conflict: %v", err)
			}
			if runtimeerrors.AsUnavailable(err) != then.unavailable {
				t.Errorf("unavailable: %v", err)
			}
			if !errors.Is(err, when) {
				t.Errorf("cause is lost: %v", err)
			}
		}
	}

	t.Run("not found", theory(fmt.Errorf("no such container: %w", cerrdefs.ErrNotFound), Then{missing: true}))
	t.Run("conflict", theory(fmt.Errorf("name in use: %w", cerrdefs.ErrConflict), Then{conflict: true}))
	t.Run("internal", theory(fmt.Errorf("daemon: %w", cerrdefs.ErrInternal), Then{unavailable: true}))
	t.Run("unknown", theory(errors.New("something"), Then{}))

	t.Run("unreachable dock", func(t *testing.T) {
		connect := func(string) (DockerClient, error) { return nil, errors.New("dial failed") }
		err := NewRuntime(connect, time.Second).StartContainer(context.Background(), "dock-1", "c")
		if !runtimeerrors.AsUnavailable(err) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestRuntime_PullImage(t *testing.T) {
	t.Run("it reads the pull progress through", func(t *testing.T) {
		client := &fakeClient{pull: func(ref string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(`{"status":"Pulling"}` + "\n" + `{"status":"Done"}` + "\n")), nil
		}}
		if err := NewRuntime(connectTo(client), time.Second).PullImage(context.Background(), "dock-1", "img"); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("manifest unknown in the stream is missing", func(t *testing.T) {
		client := &fakeClient{pull: func(ref string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(`{"errorDetail":{"message":"manifest unknown"},"error":"manifest unknown"}` + "\n")), nil
		}}
		err := NewRuntime(connectTo(client), time.Second).PullImage(context.Background(), "dock-1", "img")
		if !runtimeerrors.AsMissing(err) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("not found on request is missing", func(t *testing.T) {
		client := &fakeClient{pull: func(ref string) (io.ReadCloser, error) {
			return nil, fmt.Errorf("pull: %w", cerrdefs.ErrNotFound)
		}}
		err := NewRuntime(connectTo(client), time.Second).PullImage(context.Background(), "dock-1", "img")
		if !runtimeerrors.AsMissing(err) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
