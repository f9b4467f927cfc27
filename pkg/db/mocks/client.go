package mocks

import (
	"context"
	"errors"

	kdb "github.com/opst/pht-central/pkg/db"
	"github.com/opst/pht-central/pkg/domain"
)

type ClientInterface struct {
	Impl struct {
		Get           func(ctx context.Context, clientId string) (domain.Client, error)
		FindByService func(ctx context.Context, serviceId domain.ServiceId) ([]domain.Client, error)
		Upsert        func(ctx context.Context, client domain.Client) error
	}
	Calls struct {
		Get           CallLog[string]
		FindByService CallLog[domain.ServiceId]
		Upsert        CallLog[domain.Client]
	}
}

var _ kdb.ClientInterface = &ClientInterface{}

func NewClientInterface() *ClientInterface {
	return &ClientInterface{}
}

func (m *ClientInterface) Get(ctx context.Context, clientId string) (domain.Client, error) {
	m.Calls.Get = append(m.Calls.Get, clientId)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, clientId)
	}
	panic(errors.New("it should not be called"))
}

func (m *ClientInterface) FindByService(ctx context.Context, serviceId domain.ServiceId) ([]domain.Client, error) {
	m.Calls.FindByService = append(m.Calls.FindByService, serviceId)
	if m.Impl.FindByService != nil {
		return m.Impl.FindByService(ctx, serviceId)
	}
	panic(errors.New("it should not be called"))
}

func (m *ClientInterface) Upsert(ctx context.Context, client domain.Client) error {
	m.Calls.Upsert = append(m.Calls.Upsert, client)
	if m.Impl.Upsert != nil {
		return m.Impl.Upsert(ctx, client)
	}
	panic(errors.New("it should not be called"))
}
