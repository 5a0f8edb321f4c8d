// Package docker drives containers on docks through the docker engine API.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/opst/drydock/pkg/domain/errors/runtimeerrors"
	xe "github.com/opst/drydock/pkg/errors"
)

// image-builders print this line when they fail, even if they exit with 0.
const FailureMarker = "DRYDOCK_BUILD_FAILED"

// Labels put on containers created by drydock.
const (
	LabelContextVersionId = "drydock.contextVersionId"
	LabelBuildId          = "drydock.buildId"
	LabelInstanceId       = "drydock.instanceId"
	LabelDeploymentUuid   = "drydock.deploymentUuid"
	LabelOwner            = "drydock.owner"
)

// maximum size of build log kept.
const maxLogBytes = 64 * 1024

type ContainerSpec struct {
	Name   string
	Image  string
	Env    []string
	Cmd    []string
	Labels map[string]string
}

type ContainerState struct {
	ExitCode  int
	OOMKilled bool
	Error     string
	Running   bool
	Created   time.Time
}

// subset of client.APIClient, bound to a dock.
type DockerClient interface {
	PullImage(ctx context.Context, ref string) (io.ReadCloser, error)
	CreateContainer(ctx context.Context, spec ContainerSpec) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string, timeout time.Duration) error
	RemoveContainer(ctx context.Context, id string) error
	InspectContainer(ctx context.Context, id string) (ContainerState, error)
	Logs(ctx context.Context, id string) (io.ReadCloser, error)
}

// A wrapper for *client.Client, flattening option structs.
type dockerClient struct {
	client *client.Client
}

var _ DockerClient = &dockerClient{}

func (d *dockerClient) PullImage(ctx context.Context, ref string) (io.ReadCloser, error) {
	return d.client.ImagePull(ctx, ref, image.PullOptions{})
}

func (d *dockerClient) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	resp, err := d.client.ContainerCreate(
		ctx,
		&container.Config{
			Image:  spec.Image,
			Env:    spec.Env,
			Cmd:    spec.Cmd,
			Labels: spec.Labels,
		},
		&container.HostConfig{PublishAllPorts: true},
		nil, nil, spec.Name,
	)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (d *dockerClient) StartContainer(ctx context.Context, id string) error {
	return d.client.ContainerStart(ctx, id, container.StartOptions{})
}

func (d *dockerClient) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	sec := int(timeout.Seconds())
	return d.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &sec})
}

func (d *dockerClient) RemoveContainer(ctx context.Context, id string) error {
	return d.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true})
}

func (d *dockerClient) InspectContainer(ctx context.Context, id string) (ContainerState, error) {
	resp, err := d.client.ContainerInspect(ctx, id)
	if err != nil {
		return ContainerState{}, err
	}
	st := ContainerState{}
	if resp.ContainerJSONBase == nil {
		return st, nil
	}
	if resp.State != nil {
		st.ExitCode = resp.State.ExitCode
		st.OOMKilled = resp.State.OOMKilled
		st.Error = resp.State.Error
		st.Running = resp.State.Running
	}
	if created, err := time.Parse(time.RFC3339Nano, resp.Created); err == nil {
		st.Created = created
	}
	return st, nil
}

func (d *dockerClient) Logs(ctx context.Context, id string) (io.ReadCloser, error) {
	return d.client.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
}

// Connect returns a client for the dock at host.
type Connect func(host string) (DockerClient, error)

// DialDocks returns Connect which dials docks with the docker engine port.
//
// Clients are cached per host.
func DialDocks(port int) Connect {
	var mu sync.Mutex
	cache := map[string]DockerClient{}

	return func(host string) (DockerClient, error) {
		mu.Lock()
		defer mu.Unlock()

		if c, ok := cache[host]; ok {
			return c, nil
		}
		addr, err := EngineAddress(host, port)
		if err != nil {
			return nil, err
		}
		c, err := client.NewClientWithOpts(client.WithHost(addr), client.WithAPIVersionNegotiation())
		if err != nil {
			return nil, xe.Wrap(err)
		}
		dc := &dockerClient{client: c}
		cache[host] = dc
		return dc, nil
	}
}

// EngineAddress converts a dock host into a docker engine address.
//
//	EngineAddress("http://10.0.0.1:4242", 2375) // => "tcp://10.0.0.1:4242"
//	EngineAddress("10.0.0.1", 4242)             // => "tcp://10.0.0.1:4242"
func EngineAddress(host string, defaultPort int) (string, error) {
	h := host
	if strings.Contains(h, "://") {
		u, err := url.Parse(h)
		if err != nil {
			return "", fmt.Errorf("malformed docker host %q: %w", host, err)
		}
		h = u.Host
	}
	if h == "" {
		return "", fmt.Errorf("malformed docker host %q", host)
	}
	if _, _, err := net.SplitHostPort(h); err != nil {
		h = net.JoinHostPort(h, strconv.Itoa(defaultPort))
	}
	return "tcp://" + h, nil
}

// BuildInfo is what an exited image-builder container tells.
type BuildInfo struct {
	ExitCode int
	Failed   bool
	Log      string
	Created  time.Time
}

// Runtime is the container runtime on docks.
//
// Errors are classified with runtimeerrors: ErrMissing for 404,
// ErrConflict for 409 and ErrUnavailable for unreachable docks and 5xx.
type Runtime interface {
	PullImage(ctx context.Context, host string, image string) error
	CreateContainer(ctx context.Context, host string, spec ContainerSpec) (string, error)
	StartContainer(ctx context.Context, host string, containerId string) error
	StopContainer(ctx context.Context, host string, containerId string) error
	RemoveContainer(ctx context.Context, host string, containerId string) error

	// GetBuildInfo inspects an exited image-builder container and reads its log.
	GetBuildInfo(ctx context.Context, host string, containerId string) (BuildInfo, error)
}

type runtime struct {
	connect     Connect
	stopTimeout time.Duration
}

func NewRuntime(connect Connect, stopTimeout time.Duration) Runtime {
	return &runtime{connect: connect, stopTimeout: stopTimeout}
}

func (r *runtime) dock(host string) (DockerClient, error) {
	c, err := r.connect(host)
	if err != nil {
		return nil, runtimeerrors.NewUnavailableCausedBy("cannot connect to dock "+host, err)
	}
	return c, nil
}

func (r *runtime) PullImage(ctx context.Context, host string, image string) error {
	c, err := r.dock(host)
	if err != nil {
		return err
	}
	stream, err := c.PullImage(ctx, image)
	if err != nil {
		return classify("pull "+image, err)
	}
	defer stream.Close()

	if err := jsonmessage.DisplayJSONMessagesStream(stream, io.Discard, 0, false, nil); err != nil {
		jerr := new(jsonmessage.JSONError)
		if errors.As(err, &jerr) && isNotFoundMessage(jerr.Message) {
			return runtimeerrors.NewMissingCausedBy("pull "+image, jerr)
		}
		return classify("pull "+image, err)
	}
	return nil
}

func isNotFoundMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "manifest unknown")
}

func (r *runtime) CreateContainer(ctx context.Context, host string, spec ContainerSpec) (string, error) {
	c, err := r.dock(host)
	if err != nil {
		return "", err
	}
	id, err := c.CreateContainer(ctx, spec)
	if err != nil {
		return "", classify("create container "+spec.Name, err)
	}
	return id, nil
}

func (r *runtime) StartContainer(ctx context.Context, host string, containerId string) error {
	c, err := r.dock(host)
	if err != nil {
		return err
	}
	if err := c.StartContainer(ctx, containerId); err != nil {
		return classify("start container "+containerId, err)
	}
	return nil
}

func (r *runtime) StopContainer(ctx context.Context, host string, containerId string) error {
	c, err := r.dock(host)
	if err != nil {
		return err
	}
	if err := c.StopContainer(ctx, containerId, r.stopTimeout); err != nil {
		return classify("stop container "+containerId, err)
	}
	return nil
}

func (r *runtime) RemoveContainer(ctx context.Context, host string, containerId string) error {
	c, err := r.dock(host)
	if err != nil {
		return err
	}
	if err := c.RemoveContainer(ctx, containerId); err != nil {
		return classify("remove container "+containerId, err)
	}
	return nil
}

func (r *runtime) GetBuildInfo(ctx context.Context, host string, containerId string) (BuildInfo, error) {
	c, err := r.dock(host)
	if err != nil {
		return BuildInfo{}, err
	}
	state, err := c.InspectContainer(ctx, containerId)
	if err != nil {
		return BuildInfo{}, classify("inspect container "+containerId, err)
	}

	logs, err := c.Logs(ctx, containerId)
	if err != nil {
		return BuildInfo{}, classify("logs of container "+containerId, err)
	}
	defer logs.Close()

	buf := new(bytes.Buffer)
	if _, err := stdcopy.StdCopy(buf, buf, logs); err != nil {
		return BuildInfo{}, runtimeerrors.NewUnavailableCausedBy("reading logs of container "+containerId, err)
	}
	log := buf.String()

	return BuildInfo{
		ExitCode: state.ExitCode,
		Failed:   state.OOMKilled || state.Error != "" || strings.Contains(log, FailureMarker),
		Log:      tail(log, maxLogBytes),
		Created:  state.Created,
	}, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// classify maps docker client errors into runtimeerrors.
func classify(what string, err error) error {
	switch {
	case cerrdefs.IsNotFound(err):
		return runtimeerrors.NewMissingCausedBy(what, err)
	case cerrdefs.IsConflict(err), cerrdefs.IsAlreadyExists(err):
		return runtimeerrors.NewConflictCausedBy(what, err)
	case client.IsErrConnectionFailed(err), cerrdefs.IsUnavailable(err), cerrdefs.IsInternal(err):
		return runtimeerrors.NewUnavailableCausedBy(what, err)
	}
	return xe.WrapWithNote(what, err)
}
