package domain

import (
	"errors"
	"fmt"
)

// LoopType is a kind of worker loops.
//
// Each loop type consumes a fixed set of job kinds, except Housekeeping which cleans up stores.
type LoopType string

const (
	BuildLoop        LoopType = "build"
	InstanceLoop     LoopType = "instance"
	DockLoop         LoopType = "dock"
	IsolationLoop    LoopType = "isolation"
	ClusterLoop      LoopType = "cluster"
	HousekeepingLoop LoopType = "housekeeping"
)

func (lt LoopType) String() string {
	return string(lt)
}

func (lt LoopType) IsKnown() bool {
	switch lt {
	case BuildLoop, InstanceLoop, DockLoop, IsolationLoop, ClusterLoop, HousekeepingLoop:
		return true
	default:
		return false
	}
}

func AsLoopType(s string) (LoopType, error) {
	l := LoopType(s)
	if l.IsKnown() {
		return l, nil
	}
	return l, fmt.Errorf(`%w: "%s"`, ErrUnknownLoopType, s)
}

var ErrUnknownLoopType = errors.New("unknown loop type")
