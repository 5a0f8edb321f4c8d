package mock

import (
	"context"
	"errors"

	"github.com/opst/drydock/pkg/workloads/git"
)

type CommitResolver struct {
	Impl struct {
		HeadCommit func(ctx context.Context, repo string, branch string) (string, error)
	}
	Called struct {
		HeadCommit []struct {
			Repo   string
			Branch string
		}
	}
}

var _ git.CommitResolver = &CommitResolver{}

func (m *CommitResolver) HeadCommit(ctx context.Context, repo string, branch string) (string, error) {
	m.Called.HeadCommit = append(m.Called.HeadCommit, struct {
		Repo   string
		Branch string
	}{Repo: repo, Branch: branch})
	if m.Impl.HeadCommit == nil {
		return "", errors.New("[MOCK] not implemented")
	}
	return m.Impl.HeadCommit(ctx, repo, branch)
}
