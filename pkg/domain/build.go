package domain

import (
	"fmt"
	"time"

	domerr "github.com/opst/drydock/pkg/domain/errors"
)

// Build is a user-facing grouping of ContextVersions triggered together.
type Build struct {
	BuildId     string
	BuildNumber int64
	Owner       string
	CreatedBy   string

	ContextIds []string

	// in the order of the specs in the request.
	ContextVersionIds []string

	Started   time.Time
	Completed *time.Time
	Failed    bool
}

// Successful is true only when the build is completed without failure.
func (b Build) Successful() bool {
	return b.Completed != nil && !b.Failed
}

// Duration returns how long the build takes.
//
// When the build is not completed, it returns false.
func (b Build) Duration() (time.Duration, bool) {
	if b.Completed == nil {
		return 0, false
	}
	return b.Completed.Sub(b.Started), true
}

// BuildSpec describes one container to be built in a build request.
//
// When AppCodeVersion.Commit is empty, the head of the branch is used.
type BuildSpec struct {
	ContextId      string         `json:"contextId" validate:"required"`
	Files          []SourceFile   `json:"files" validate:"dive"`
	DockerfileHash string         `json:"dockerfileHash" validate:"required"`
	AppCodeVersion AppCodeVersion `json:"appCodeVersion"`
	IsTesting      bool           `json:"isTesting"`
}

// Validate checks that no two files share a path.
func (s BuildSpec) Validate() error {
	seen := map[string]struct{}{}
	for _, f := range s.Files {
		if _, ok := seen[f.Path]; ok {
			return fmt.Errorf("%w: file %s is duplicated in context %s", domerr.ErrValidation, f.Path, s.ContextId)
		}
		seen[f.Path] = struct{}{}
	}
	return nil
}

// Inputs returns fingerprint inputs of the spec.
func (s BuildSpec) Inputs() BuildInputs {
	return BuildInputs{
		Files:          s.Files,
		DockerfileHash: s.DockerfileHash,
		AppCodeVersion: s.AppCodeVersion,
		IsTesting:      s.IsTesting,
	}
}
