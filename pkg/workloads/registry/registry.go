// Package registry looks up images pushed by image-builders.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
)

var (
	// the image (or its repository) is not in the registry.
	ErrImageNotFound = errors.New("image not found in registry")

	// the registry refuses our credential.
	ErrUnauthorized = errors.New("unauthorized to registry")

	// the reference is not a valid image reference.
	ErrInvalidRef = errors.New("invalid image reference")
)

type Registry interface {
	// Digest returns the digest of the image.
	//
	// # Returns
	//
	// - string: digest like "sha256:...".
	//
	// - error: ErrImageNotFound, ErrUnauthorized, ErrInvalidRef, or others for transient errors.
	Digest(ctx context.Context, ref string) (string, error)
}

type Config struct {
	// allow plain HTTP registries.
	Insecure bool
}

type registry struct {
	config Config
}

func New(config Config) Registry {
	return &registry{config: config}
}

func (r *registry) nameOptions() []name.Option {
	if r.config.Insecure {
		return []name.Option{name.Insecure}
	}
	return nil
}

func (r *registry) Digest(ctx context.Context, ref string) (string, error) {
	parsed, err := name.ParseReference(ref, r.nameOptions()...)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidRef, err)
	}

	desc, err := remote.Head(
		parsed,
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
	)
	if err != nil {
		return "", mapError(err)
	}
	return desc.Digest.String(), nil
}

func mapError(err error) error {
	var terr *transport.Error
	if errors.As(err, &terr) {
		for _, d := range terr.Errors {
			switch d.Code {
			case transport.UnauthorizedErrorCode, transport.DeniedErrorCode:
				return fmt.Errorf("%w: %w", ErrUnauthorized, err)
			case transport.ManifestUnknownErrorCode, transport.NameUnknownErrorCode:
				return fmt.Errorf("%w: %w", ErrImageNotFound, err)
			}
		}
		switch terr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrImageNotFound, err)
		}
	}
	return fmt.Errorf("registry error: %w", err)
}

// ImageTag composes the tag of an image built for a ContextVersion.
//
//	ImageTag("registry.example.com", "Org-1", "cv-1") // => "registry.example.com/org-1/cv-1:latest"
//
// # Returns
//
// - string: normalized, fully qualified tag.
//
// - error: ErrInvalidRef when components can not be a valid tag.
func ImageTag(registryHost string, owner string, contextVersionId string) (string, error) {
	tag, err := name.NewTag(
		fmt.Sprintf("%s/%s/%s:latest", registryHost, strings.ToLower(owner), strings.ToLower(contextVersionId)),
		name.StrictValidation,
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidRef, err)
	}
	return tag.Name(), nil
}
