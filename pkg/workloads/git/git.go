// Package git resolves branch heads of app code repositories.
package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"
	domerr "github.com/opst/drydock/pkg/domain/errors"
)

// the repository or the branch does not exist.
var ErrUnknownRef = fmt.Errorf("%w: unknown repository or branch", domerr.ErrValidation)

type CommitResolver interface {
	// HeadCommit returns the commit hash which the branch points.
	HeadCommit(ctx context.Context, repo string, branch string) (string, error)
}

type lister func(ctx context.Context, url string) ([]*plumbing.Reference, error)

func lsRemote(ctx context.Context, url string) ([]*plumbing.Reference, error) {
	remote := gogit.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	return remote.ListContext(ctx, &gogit.ListOptions{})
}

type resolver struct {
	baseURL string
	list    lister
}

// New returns a CommitResolver which runs "ls-remote" against baseURL/repo.
//
// repo can also be a complete URL.
func New(baseURL string) CommitResolver {
	return &resolver{baseURL: strings.TrimSuffix(baseURL, "/"), list: lsRemote}
}

func (r *resolver) url(repo string) string {
	if strings.Contains(repo, "://") || strings.HasPrefix(repo, "git@") {
		return repo
	}
	return r.baseURL + "/" + strings.TrimPrefix(repo, "/")
}

func (r *resolver) HeadCommit(ctx context.Context, repo string, branch string) (string, error) {
	refs, err := r.list(ctx, r.url(repo))
	if err != nil {
		if errors.Is(err, transport.ErrRepositoryNotFound) || errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return "", fmt.Errorf("%w: %s", ErrUnknownRef, repo)
		}
		return "", err
	}

	want := plumbing.NewBranchReferenceName(branch)
	for _, ref := range refs {
		if ref.Name() == want && ref.Type() == plumbing.HashReference {
			return ref.Hash().String(), nil
		}
	}
	return "", fmt.Errorf("%w: %s@%s", ErrUnknownRef, repo, branch)
}
