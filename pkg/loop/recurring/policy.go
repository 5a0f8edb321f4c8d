// Package recurring decides how worker loops go on after each run.
package recurring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opst/drydock/pkg/loop"
)

// ParsePolicy parses "forever[:COOLDOWN]" or "backlog".
func ParsePolicy(s string) (Policy, error) {
	typ, param, ok := strings.Cut(s, ":")
	switch typ {
	case "forever":
		if !ok || param == "" {
			return Forever(0), nil
		}
		cooldown, err := time.ParseDuration(param)
		if err != nil {
			return nil, fmt.Errorf(`failed to parse: %s as "forever:COOLDOWN": %w`, s, err)
		}
		if cooldown < 0 {
			return nil, fmt.Errorf("cooldown should not be negative: %s", s)
		}
		return Forever(cooldown), nil
	case "backlog":
		if ok {
			return nil, fmt.Errorf("backlog policy does not take parameters: %s", s)
		}
		return Backlog(), nil
	}
	return nil, fmt.Errorf("unknown policy name: %s (should be one of -- forever|backlog)", typ)
}

// Policy decides what a loop does after a run.
type Policy interface {
	// Next decides from whether the run did something, and its error.
	Next(worked bool, err error) loop.Next
	String() string
}

// Forever runs again at once while there are jobs.
// When the queue is empty, it waits cooldown before the next run.
func Forever(cooldown time.Duration) Policy {
	return forever(cooldown)
}

type forever time.Duration

func (f forever) String() string {
	return fmt.Sprintf("forever:%s", time.Duration(f).String())
}

func (f forever) Next(worked bool, err error) loop.Next {
	if worked {
		return loop.Continue(0)
	}
	return loop.Continue(time.Duration(f))
}

// Backlog runs again at once while there are jobs, and stops when the queue is empty.
func Backlog() Policy {
	return backlog
}

type backlogPolicy struct{}

func (backlogPolicy) String() string {
	return "backlog"
}

func (backlogPolicy) Next(worked bool, err error) loop.Next {
	if worked {
		return loop.Continue(0)
	}
	return loop.Break(nil)
}

var backlog = backlogPolicy{}

// UntilError makes p break with the error of a run.
func UntilError(p Policy) Policy {
	return untilError{base: p}
}

type untilError struct {
	base Policy
}

func (u untilError) String() string {
	return fmt.Sprintf("%s (until error)", u.base.String())
}

func (u untilError) Next(worked bool, err error) loop.Next {
	if err != nil {
		return loop.Break(err)
	}
	return u.base.Next(worked, err)
}

// Task is a run of a worker loop.
//
// # Returns
//
// - T: value passed to the next run.
//
// - bool: true when the run did something, and more can be there.
//
// - error: error of the run.
type Task[T any] func(context.Context, T) (T, bool, error)

// Applied makes loop.Task which runs rt and lets p decide the next.
func (rt Task[T]) Applied(p Policy) loop.Task[T] {
	return func(ctx context.Context, t T) (T, loop.Next) {
		v, worked, err := rt(ctx, t)
		return v, p.Next(worked, err)
	}
}
