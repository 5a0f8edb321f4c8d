package domain

import (
	"errors"
	"fmt"
	"time"
)

type ContextVersionState string

const (
	// ContextVersion is created, but its build is not started yet.
	Created ContextVersionState = "created"

	// image-builder container is created, and is going to be started.
	BuildStarting ContextVersionState = "buildStarting"

	// image-builder container is running.
	BuildStarted ContextVersionState = "buildStarted"

	// image is built and pushed. (terminal)
	BuildCompleted ContextVersionState = "buildCompleted"

	// build is failed. (terminal)
	BuildErrored ContextVersionState = "buildErrored"
)

func (s ContextVersionState) String() string {
	return string(s)
}

// IsTerminal tells the state never changes.
func (s ContextVersionState) IsTerminal() bool {
	return s == BuildCompleted || s == BuildErrored
}

// InProgress tells the build of the state is not finished yet.
func (s ContextVersionState) InProgress() bool {
	switch s {
	case Created, BuildStarting, BuildStarted:
		return true
	}
	return false
}

var ErrUnknownContextVersionState = errors.New("unknown context version state")

func AsContextVersionState(s string) (ContextVersionState, error) {
	switch ContextVersionState(s) {
	case Created, BuildStarting, BuildStarted, BuildCompleted, BuildErrored:
		return ContextVersionState(s), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownContextVersionState, s)
}

// CanTransit tells whether a ContextVersion in state `from` can be changed to `to`.
//
// buildStarting -> buildStarting is allowed, for retrying to start image-builder container.
func CanTransit(from, to ContextVersionState) bool {
	switch from {
	case Created:
		return to == BuildStarting || to == BuildErrored
	case BuildStarting:
		return to == BuildStarting || to == BuildStarted || to.IsTerminal()
	case BuildStarted:
		return to.IsTerminal()
	}
	return false
}

// StatesTransitableTo lists states which can be changed to `to`.
func StatesTransitableTo(to ContextVersionState) []ContextVersionState {
	ret := []ContextVersionState{}
	for _, from := range []ContextVersionState{
		Created, BuildStarting, BuildStarted, BuildCompleted, BuildErrored,
	} {
		if CanTransit(from, to) {
			ret = append(ret, from)
		}
	}
	return ret
}

// BuildContainer points the image-builder container of a ContextVersion.
type BuildContainer struct {
	DockerHost      string
	DockerContainer string
	DockerTag       string
}

// ContextVersionBuild is the build record of a ContextVersion.
type ContextVersionBuild struct {
	// id of the build record. ContextVersions sharing the id move in lockstep.
	BuildId string

	BuildContainer

	Started   *time.Time
	Completed *time.Time

	TriggeredAction string
	TriggeredBy     string

	Message  string
	Log      string
	ExitCode *int
}

type ContextVersion struct {
	ContextVersionId string
	ContextId        string
	Owner            string
	CreatedBy        string

	Fingerprint string
	Inputs      BuildInputs

	State ContextVersionState
	Build ContextVersionBuild

	// the dock hosted the build has gone.
	DockRemoved bool

	// the ContextVersion has been recovered after a stale container-created event.
	Recovered bool

	CreatedAt time.Time
}

func (cv ContextVersion) Equal(o ContextVersion) bool {
	return cv.ContextVersionId == o.ContextVersionId &&
		cv.State == o.State &&
		cv.Build.BuildId == o.Build.BuildId &&
		cv.Build.BuildContainer == o.Build.BuildContainer &&
		cv.DockRemoved == o.DockRemoved &&
		cv.Recovered == o.Recovered
}

// BuildOutcome is a result of an image-builder container.
type BuildOutcome struct {
	ExitCode int

	// image-builder reports failure, even if the exit code is 0.
	Failed bool

	Message string
	Log     string
}

// Successful tells the build is succeeded.
func (o BuildOutcome) Successful() bool {
	return !o.Failed && o.ExitCode == 0
}

// State returns the terminal state corresponding to the outcome.
func (o BuildOutcome) State() ContextVersionState {
	if o.Successful() {
		return BuildCompleted
	}
	return BuildErrored
}
