package args_test

import (
	"errors"
	"flag"
	"testing"

	"github.com/opst/drydock/pkg/domain"
	"github.com/opst/drydock/pkg/utils/args"
)

func TestParser(t *testing.T) {
	type When struct {
		argv     []string
		fallback string
	}
	type Then struct {
		wantParseError bool
		isSet          bool
		value          domain.LoopType
		orElse         domain.LoopType
		wantElseError  bool
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			testee := args.Parser(domain.AsLoopType)

			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			fs.Var(testee, "type", "")
			err := fs.Parse(when.argv)
			if then.wantParseError {
				if err == nil {
					t.Error("expected error does not happen")
				}
			} else if err != nil {
				t.Fatal(err)
			}

			if testee.IsSet() != then.isSet {
				t.Errorf("IsSet: actual = %v, expected = %v", testee.IsSet(), then.isSet)
			}
			if testee.Value() != then.value {
				t.Errorf("Value: actual = %s, expected = %s", testee.Value(), then.value)
			}

			got, err := testee.OrElse(when.fallback)
			if then.wantElseError {
				if !errors.Is(err, domain.ErrUnknownLoopType) {
					t.Errorf("OrElse: unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != then.orElse {
				t.Errorf("OrElse: actual = %s, expected = %s", got, then.orElse)
			}
		}
	}

	t.Run("a known loop type is parsed", theory(
		When{argv: []string{"-type", "build"}, fallback: "dock"},
		Then{isSet: true, value: domain.BuildLoop, orElse: domain.BuildLoop},
	))

	t.Run("an unknown loop type is rejected and the flag stays unset", theory(
		When{argv: []string{"-type", "laundry"}, fallback: "dock"},
		Then{wantParseError: true, orElse: domain.DockLoop},
	))

	t.Run("fallback is used when the flag is not given", theory(
		When{argv: []string{}, fallback: "housekeeping"},
		Then{orElse: domain.HousekeepingLoop},
	))

	t.Run("broken fallback is reported when the flag is not given", theory(
		When{argv: []string{}, fallback: "laundry"},
		Then{wantElseError: true},
	))
}
