package domain

import (
	"fmt"
	"strings"

	domerr "github.com/opst/drydock/pkg/domain/errors"
)

// Dependency is a requested dependency of an AutoIsolationConfig.
//
// It is either InstanceDependency or RepoDependency.
type Dependency interface {
	// Key identifies the dependency. Dependencies having the same key resolve to the same instance.
	Key() string

	// Spec returns wire representation.
	Spec() DependencySpec

	dependency()
}

// InstanceDependency refers an existing instance directly.
type InstanceDependency struct {
	InstanceId string
}

func (d InstanceDependency) dependency() {}

func (d InstanceDependency) Key() string {
	return "instance:" + d.InstanceId
}

func (d InstanceDependency) Spec() DependencySpec {
	return DependencySpec{Instance: d.InstanceId}
}

// RepoDependency refers an instance built from a repo/branch in an org.
type RepoDependency struct {
	Repo   string
	Branch string
	Org    string
}

func (d RepoDependency) dependency() {}

func (d RepoDependency) Key() string {
	return fmt.Sprintf(
		"repo:%s/%s@%s",
		strings.ToLower(d.Repo), strings.ToLower(d.Branch), strings.ToLower(d.Org),
	)
}

func (d RepoDependency) Spec() DependencySpec {
	return DependencySpec{Repo: d.Repo, Branch: d.Branch, Org: d.Org}
}

// DependencySpec is the wire form of Dependency.
//
// Either Instance or all of Repo/Branch/Org should be set, never both.
type DependencySpec struct {
	Instance string `json:"instance,omitempty"`
	Repo     string `json:"repo,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Org      string `json:"org,omitempty"`
}

// Dependency converts the spec into Dependency.
//
// # Returns
//
// - Dependency
//
// - error: ErrInvalidDependency when the spec is neither of an instance reference nor a repo/branch/org spec.
func (s DependencySpec) Dependency() (Dependency, error) {
	hasInstance := s.Instance != ""
	repoFields := 0
	for _, f := range []string{s.Repo, s.Branch, s.Org} {
		if f != "" {
			repoFields += 1
		}
	}

	switch {
	case hasInstance && repoFields == 0:
		return InstanceDependency{InstanceId: s.Instance}, nil
	case !hasInstance && repoFields == 3:
		return RepoDependency{Repo: s.Repo, Branch: s.Branch, Org: s.Org}, nil
	}
	return nil, fmt.Errorf("%w: %+v", domerr.ErrInvalidDependency, s)
}

// AutoIsolationConfig declares requested dependencies of a master instance.
type AutoIsolationConfig struct {
	AutoIsolationConfigId string

	// master instance. Empty until the main instance of a cluster is created.
	InstanceId string

	RequestedDependencies []Dependency

	CreatedByUser    string
	OwnedByOrg       string
	RedeployOnKilled bool

	SoftDelete
}

// ValidateDependencies checks that no two dependencies resolve to the same instance.
func ValidateDependencies(deps []Dependency) error {
	seen := map[string]struct{}{}
	for _, d := range deps {
		if d == nil {
			return fmt.Errorf("%w: nil dependency", domerr.ErrInvalidDependency)
		}
		k := d.Key()
		if _, ok := seen[k]; ok {
			return fmt.Errorf("%w: %s", domerr.ErrDuplicateDependency, k)
		}
		seen[k] = struct{}{}
	}
	return nil
}
