package mocks

import (
	"context"
	"errors"

	kdb "github.com/opst/pht-central/pkg/db"
	"github.com/opst/pht-central/pkg/domain"
)

type StationInterface struct {
	Impl struct {
		Get                     func(ctx context.Context, stationId string) (domain.Station, error)
		FindWithRegistryProject func(ctx context.Context) ([]domain.Station, error)
		SetPublicKeySaved       func(ctx context.Context, stationId string, saved bool) error
	}
	Calls struct {
		Get                     CallLog[string]
		FindWithRegistryProject CallLog[struct{}]
		SetPublicKeySaved       CallLog[struct {
			StationId string
			Saved     bool
		}]
	}
}

var _ kdb.StationInterface = &StationInterface{}

func NewStationInterface() *StationInterface {
	return &StationInterface{}
}

func (m *StationInterface) Get(ctx context.Context, stationId string) (domain.Station, error) {
	m.Calls.Get = append(m.Calls.Get, stationId)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, stationId)
	}
	panic(errors.New("it should not be called"))
}

func (m *StationInterface) FindWithRegistryProject(ctx context.Context) ([]domain.Station, error) {
	m.Calls.FindWithRegistryProject = append(m.Calls.FindWithRegistryProject, struct{}{})
	if m.Impl.FindWithRegistryProject != nil {
		return m.Impl.FindWithRegistryProject(ctx)
	}
	panic(errors.New("it should not be called"))
}

func (m *StationInterface) SetPublicKeySaved(ctx context.Context, stationId string, saved bool) error {
	m.Calls.SetPublicKeySaved = append(m.Calls.SetPublicKeySaved, struct {
		StationId string
		Saved     bool
	}{StationId: stationId, Saved: saved})
	if m.Impl.SetPublicKeySaved != nil {
		return m.Impl.SetPublicKeySaved(ctx, stationId, saved)
	}
	panic(errors.New("it should not be called"))
}

type RegistryProjectInterface struct {
	Impl struct {
		Find func(ctx context.Context, ecosystem domain.Ecosystem) ([]domain.RegistryProject, error)
	}
	Calls struct {
		Find CallLog[domain.Ecosystem]
	}
}

var _ kdb.RegistryProjectInterface = &RegistryProjectInterface{}

func NewRegistryProjectInterface() *RegistryProjectInterface {
	return &RegistryProjectInterface{}
}

func (m *RegistryProjectInterface) Find(ctx context.Context, ecosystem domain.Ecosystem) ([]domain.RegistryProject, error) {
	m.Calls.Find = append(m.Calls.Find, ecosystem)
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, ecosystem)
	}
	panic(errors.New("it should not be called"))
}
