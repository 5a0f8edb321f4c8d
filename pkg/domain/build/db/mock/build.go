package mock

import (
	"context"
	"errors"

	"github.com/opst/drydock/pkg/domain"
	kdb "github.com/opst/drydock/pkg/domain/build/db"
	dbmock "github.com/opst/drydock/pkg/domain/internal/db/mock"
)

type BuildInterface struct {
	Impl struct {
		New     func(ctx context.Context, build kdb.NewBuild) (domain.Build, error)
		Get     func(ctx context.Context, buildIds []string) (map[string]domain.Build, error)
		Resolve func(ctx context.Context, contextVersionIds []string) ([]domain.Build, error)
	}

	Calls struct {
		New     dbmock.CallLog[kdb.NewBuild]
		Get     dbmock.CallLog[[]string]
		Resolve dbmock.CallLog[[]string]
	}
}

func NewBuildInterface() *BuildInterface {
	return &BuildInterface{}
}

var _ kdb.Interface = &BuildInterface{}

func (m *BuildInterface) New(ctx context.Context, build kdb.NewBuild) (domain.Build, error) {
	m.Calls.New = append(m.Calls.New, build)
	if m.Impl.New != nil {
		return m.Impl.New(ctx, build)
	}

	panic(errors.New("it should not be called"))
}

func (m *BuildInterface) Get(ctx context.Context, buildIds []string) (map[string]domain.Build, error) {
	m.Calls.Get = append(m.Calls.Get, buildIds)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, buildIds)
	}

	panic(errors.New("it should not be called"))
}

func (m *BuildInterface) Resolve(ctx context.Context, contextVersionIds []string) ([]domain.Build, error) {
	m.Calls.Resolve = append(m.Calls.Resolve, contextVersionIds)
	if m.Impl.Resolve != nil {
		return m.Impl.Resolve(ctx, contextVersionIds)
	}

	panic(errors.New("it should not be called"))
}
