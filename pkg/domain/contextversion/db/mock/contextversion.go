package mock

import (
	"context"
	"errors"

	"github.com/opst/drydock/pkg/domain"
	kdb "github.com/opst/drydock/pkg/domain/contextversion/db"
	dbmock "github.com/opst/drydock/pkg/domain/internal/db/mock"
)

type ContextVersionInterface struct {
	Impl struct {
		New               func(ctx context.Context, cv kdb.NewContextVersion) (domain.ContextVersion, error)
		Get               func(ctx context.Context, contextVersionIds []string) (map[string]domain.ContextVersion, error)
		FindReusable      func(ctx context.Context, fingerprint string) ([]domain.ContextVersion, error)
		FindByBuild       func(ctx context.Context, buildId string) ([]domain.ContextVersion, error)
		MarkRequested     func(ctx context.Context, contextVersionId string, triggeredAction string, triggeredBy string) (domain.ContextVersion, bool, error)
		MarkBuildStarting func(ctx context.Context, buildId string, container domain.BuildContainer) ([]string, error)
		MarkBuildStarted  func(ctx context.Context, buildId string, dockerContainer string) ([]string, error)
		Finish            func(ctx context.Context, buildId string, dockerContainer string, outcome domain.BuildOutcome) ([]string, error)
		ErrorBuild        func(ctx context.Context, contextVersionId string, message string) error
		MarkDockRemoved   func(ctx context.Context, dockerHost string) ([]domain.ContextVersion, error)
		Recover           func(ctx context.Context, contextVersionId string) error
		Delete            func(ctx context.Context, contextVersionId string) error
	}

	Calls struct {
		New           dbmock.CallLog[kdb.NewContextVersion]
		Get           dbmock.CallLog[[]string]
		FindReusable  dbmock.CallLog[string]
		FindByBuild   dbmock.CallLog[string]
		MarkRequested dbmock.CallLog[struct {
			ContextVersionId string
			TriggeredAction  string
			TriggeredBy      string
		}]
		MarkBuildStarting dbmock.CallLog[struct {
			BuildId   string
			Container domain.BuildContainer
		}]
		MarkBuildStarted dbmock.CallLog[struct {
			BuildId         string
			DockerContainer string
		}]
		Finish dbmock.CallLog[struct {
			BuildId         string
			DockerContainer string
			Outcome         domain.BuildOutcome
		}]
		ErrorBuild dbmock.CallLog[struct {
			ContextVersionId string
			Message          string
		}]
		MarkDockRemoved dbmock.CallLog[string]
		Recover         dbmock.CallLog[string]
		Delete          dbmock.CallLog[string]
	}
}

func NewContextVersionInterface() *ContextVersionInterface {
	return &ContextVersionInterface{}
}

var _ kdb.Interface = &ContextVersionInterface{}

func (m *ContextVersionInterface) New(ctx context.Context, cv kdb.NewContextVersion) (domain.ContextVersion, error) {
	m.Calls.New = append(m.Calls.New, cv)
	if m.Impl.New != nil {
		return m.Impl.New(ctx, cv)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContextVersionInterface) Get(ctx context.Context, contextVersionIds []string) (map[string]domain.ContextVersion, error) {
	m.Calls.Get = append(m.Calls.Get, contextVersionIds)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, contextVersionIds)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContextVersionInterface) FindReusable(ctx context.Context, fingerprint string) ([]domain.ContextVersion, error) {
	m.Calls.FindReusable = append(m.Calls.FindReusable, fingerprint)
	if m.Impl.FindReusable != nil {
		return m.Impl.FindReusable(ctx, fingerprint)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContextVersionInterface) FindByBuild(ctx context.Context, buildId string) ([]domain.ContextVersion, error) {
	m.Calls.FindByBuild = append(m.Calls.FindByBuild, buildId)
	if m.Impl.FindByBuild != nil {
		return m.Impl.FindByBuild(ctx, buildId)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContextVersionInterface) MarkRequested(ctx context.Context, contextVersionId string, triggeredAction string, triggeredBy string) (domain.ContextVersion, bool, error) {
	m.Calls.MarkRequested = append(m.Calls.MarkRequested, struct {
		ContextVersionId string
		TriggeredAction  string
		TriggeredBy      string
	}{ContextVersionId: contextVersionId, TriggeredAction: triggeredAction, TriggeredBy: triggeredBy})
	if m.Impl.MarkRequested != nil {
		return m.Impl.MarkRequested(ctx, contextVersionId, triggeredAction, triggeredBy)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContextVersionInterface) MarkBuildStarting(ctx context.Context, buildId string, container domain.BuildContainer) ([]string, error) {
	m.Calls.MarkBuildStarting = append(m.Calls.MarkBuildStarting, struct {
		BuildId   string
		Container domain.BuildContainer
	}{BuildId: buildId, Container: container})
	if m.Impl.MarkBuildStarting != nil {
		return m.Impl.MarkBuildStarting(ctx, buildId, container)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContextVersionInterface) MarkBuildStarted(ctx context.Context, buildId string, dockerContainer string) ([]string, error) {
	m.Calls.MarkBuildStarted = append(m.Calls.MarkBuildStarted, struct {
		BuildId         string
		DockerContainer string
	}{BuildId: buildId, DockerContainer: dockerContainer})
	if m.Impl.MarkBuildStarted != nil {
		return m.Impl.MarkBuildStarted(ctx, buildId, dockerContainer)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContextVersionInterface) Finish(ctx context.Context, buildId string, dockerContainer string, outcome domain.BuildOutcome) ([]string, error) {
	m.Calls.Finish = append(m.Calls.Finish, struct {
		BuildId         string
		DockerContainer string
		Outcome         domain.BuildOutcome
	}{BuildId: buildId, DockerContainer: dockerContainer, Outcome: outcome})
	if m.Impl.Finish != nil {
		return m.Impl.Finish(ctx, buildId, dockerContainer, outcome)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContextVersionInterface) ErrorBuild(ctx context.Context, contextVersionId string, message string) error {
	m.Calls.ErrorBuild = append(m.Calls.ErrorBuild, struct {
		ContextVersionId string
		Message          string
	}{ContextVersionId: contextVersionId, Message: message})
	if m.Impl.ErrorBuild != nil {
		return m.Impl.ErrorBuild(ctx, contextVersionId, message)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContextVersionInterface) MarkDockRemoved(ctx context.Context, dockerHost string) ([]domain.ContextVersion, error) {
	m.Calls.MarkDockRemoved = append(m.Calls.MarkDockRemoved, dockerHost)
	if m.Impl.MarkDockRemoved != nil {
		return m.Impl.MarkDockRemoved(ctx, dockerHost)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContextVersionInterface) Recover(ctx context.Context, contextVersionId string) error {
	m.Calls.Recover = append(m.Calls.Recover, contextVersionId)
	if m.Impl.Recover != nil {
		return m.Impl.Recover(ctx, contextVersionId)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContextVersionInterface) Delete(ctx context.Context, contextVersionId string) error {
	m.Calls.Delete = append(m.Calls.Delete, contextVersionId)
	if m.Impl.Delete != nil {
		return m.Impl.Delete(ctx, contextVersionId)
	}

	panic(errors.New("it should not be called"))
}
