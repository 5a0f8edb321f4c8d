package domain_test

import (
	"errors"
	"testing"

	"github.com/opst/drydock/pkg/domain"
)

func TestCanTransit(t *testing.T) {
	all := []domain.ContextVersionState{
		domain.Created, domain.BuildStarting, domain.BuildStarted,
		domain.BuildCompleted, domain.BuildErrored,
	}

	allowed := map[domain.ContextVersionState][]domain.ContextVersionState{
		domain.Created:        {domain.BuildStarting, domain.BuildErrored},
		domain.BuildStarting:  {domain.BuildStarting, domain.BuildStarted, domain.BuildCompleted, domain.BuildErrored},
		domain.BuildStarted:   {domain.BuildCompleted, domain.BuildErrored},
		domain.BuildCompleted: {},
		domain.BuildErrored:   {},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			if got := domain.CanTransit(from, to); got != want {
				t.Errorf("CanTransit(%s, %s): got %v, want %v", from, to, got, want)
			}
		}
	}

	t.Run("terminal states never change", func(t *testing.T) {
		for _, to := range all {
			if domain.CanTransit(domain.BuildErrored, to) {
				t.Errorf("buildErrored -> %s is allowed", to)
			}
			if domain.CanTransit(domain.BuildCompleted, to) {
				t.Errorf("buildCompleted -> %s is allowed", to)
			}
		}
	})
}

func TestStatesTransitableTo(t *testing.T) {
	got := domain.StatesTransitableTo(domain.BuildStarted)
	if len(got) != 1 || got[0] != domain.BuildStarting {
		t.Errorf("unexpected: %v", got)
	}
}

func TestAsContextVersionState(t *testing.T) {
	for _, s := range []string{"created", "buildStarting", "buildStarted", "buildCompleted", "buildErrored"} {
		got, err := domain.AsContextVersionState(s)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", s, err)
		}
		if got.String() != s {
			t.Errorf("got %s, want %s", got, s)
		}
	}

	if _, err := domain.AsContextVersionState("buildRunning"); !errors.Is(err, domain.ErrUnknownContextVersionState) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuildOutcome(t *testing.T) {
	for name, testcase := range map[string]struct {
		outcome domain.BuildOutcome
		want    domain.ContextVersionState
	}{
		"exit 0":            {outcome: domain.BuildOutcome{ExitCode: 0}, want: domain.BuildCompleted},
		"exit 1":            {outcome: domain.BuildOutcome{ExitCode: 1}, want: domain.BuildErrored},
		"exit 0 but failed": {outcome: domain.BuildOutcome{ExitCode: 0, Failed: true}, want: domain.BuildErrored},
	} {
		t.Run(name, func(t *testing.T) {
			if got := testcase.outcome.State(); got != testcase.want {
				t.Errorf("got %s, want %s", got, testcase.want)
			}
		})
	}
}
