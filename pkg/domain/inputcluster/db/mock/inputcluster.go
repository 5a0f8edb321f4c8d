package mock

import (
	"context"
	"errors"

	"github.com/opst/drydock/pkg/domain"
	kdb "github.com/opst/drydock/pkg/domain/inputcluster/db"
	dbmock "github.com/opst/drydock/pkg/domain/internal/db/mock"
)

type InputClusterInterface struct {
	Impl struct {
		FindSimilar func(ctx context.Context, similarity domain.ClusterSimilarity) ([]domain.InputClusterConfig, error)
		New         func(ctx context.Context, config kdb.NewInputClusterConfig) (domain.InputClusterConfig, error)
		Get         func(ctx context.Context, inputClusterConfigId string) (domain.InputClusterConfig, error)
		Delete      func(ctx context.Context, inputClusterConfigId string) error
	}

	Calls struct {
		FindSimilar dbmock.CallLog[domain.ClusterSimilarity]
		New         dbmock.CallLog[kdb.NewInputClusterConfig]
		Get         dbmock.CallLog[string]
		Delete      dbmock.CallLog[string]
	}
}

func NewInputClusterInterface() *InputClusterInterface {
	return &InputClusterInterface{}
}

var _ kdb.Interface = &InputClusterInterface{}

func (m *InputClusterInterface) FindSimilar(ctx context.Context, similarity domain.ClusterSimilarity) ([]domain.InputClusterConfig, error) {
	m.Calls.FindSimilar = append(m.Calls.FindSimilar, similarity)
	if m.Impl.FindSimilar != nil {
		return m.Impl.FindSimilar(ctx, similarity)
	}

	panic(errors.New("it should not be called"))
}

func (m *InputClusterInterface) New(ctx context.Context, config kdb.NewInputClusterConfig) (domain.InputClusterConfig, error) {
	m.Calls.New = append(m.Calls.New, config)
	if m.Impl.New != nil {
		return m.Impl.New(ctx, config)
	}

	panic(errors.New("it should not be called"))
}

func (m *InputClusterInterface) Get(ctx context.Context, inputClusterConfigId string) (domain.InputClusterConfig, error) {
	m.Calls.Get = append(m.Calls.Get, inputClusterConfigId)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, inputClusterConfigId)
	}

	panic(errors.New("it should not be called"))
}

func (m *InputClusterInterface) Delete(ctx context.Context, inputClusterConfigId string) error {
	m.Calls.Delete = append(m.Calls.Delete, inputClusterConfigId)
	if m.Impl.Delete != nil {
		return m.Impl.Delete(ctx, inputClusterConfigId)
	}

	panic(errors.New("it should not be called"))
}
