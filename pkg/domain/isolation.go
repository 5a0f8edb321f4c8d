package domain

import (
	"errors"
	"fmt"
	"time"
)

type IsolationState string

const (
	IsolationNone    IsolationState = "none"
	IsolationKilling IsolationState = "killing"
	IsolationKilled  IsolationState = "killed"
)

func (s IsolationState) String() string {
	return string(s)
}

var ErrUnknownIsolationState = errors.New("unknown isolation state")

func AsIsolationState(s string) (IsolationState, error) {
	switch st := IsolationState(s); st {
	case IsolationNone, IsolationKilling, IsolationKilled:
		return st, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownIsolationState, s)
}

// Isolation groups a master instance and its children.
type Isolation struct {
	IsolationId      string
	Owner            string
	CreatedBy        string
	MasterInstanceId string

	State            IsolationState
	RedeployOnKilled bool

	// instances being killed together. Valid while killing or killed.
	KillTargets []string

	CreatedAt time.Time
}
