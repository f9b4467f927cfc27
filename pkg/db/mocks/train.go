package mocks

import (
	"context"
	"errors"

	kdb "github.com/opst/pht-central/pkg/db"
	"github.com/opst/pht-central/pkg/domain"
)

type TrainInterface struct {
	Impl struct {
		Get    func(ctx context.Context, trainId string) (domain.Train, error)
		Update func(ctx context.Context, train domain.Train) error
		Finish func(ctx context.Context, trainId string, result domain.Result) (domain.Train, error)
	}
	Calls struct {
		Get    CallLog[string]
		Update CallLog[domain.Train]
		Finish CallLog[struct {
			TrainId string
			Result  domain.Result
		}]
	}
}

var _ kdb.TrainInterface = &TrainInterface{}

func NewTrainInterface() *TrainInterface {
	return &TrainInterface{}
}

func (m *TrainInterface) Get(ctx context.Context, trainId string) (domain.Train, error) {
	m.Calls.Get = append(m.Calls.Get, trainId)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, trainId)
	}
	panic(errors.New("it should not be called"))
}

func (m *TrainInterface) Update(ctx context.Context, train domain.Train) error {
	m.Calls.Update = append(m.Calls.Update, train)
	if m.Impl.Update != nil {
		return m.Impl.Update(ctx, train)
	}
	panic(errors.New("it should not be called"))
}

func (m *TrainInterface) Finish(ctx context.Context, trainId string, result domain.Result) (domain.Train, error) {
	m.Calls.Finish = append(m.Calls.Finish, struct {
		TrainId string
		Result  domain.Result
	}{TrainId: trainId, Result: result})
	if m.Impl.Finish != nil {
		return m.Impl.Finish(ctx, trainId, result)
	}
	panic(errors.New("it should not be called"))
}

type TrainStationInterface struct {
	Impl struct {
		Find func(ctx context.Context, trainId string) ([]domain.TrainStation, error)
	}
	Calls struct {
		Find CallLog[string]
	}
}

var _ kdb.TrainStationInterface = &TrainStationInterface{}

func NewTrainStationInterface() *TrainStationInterface {
	return &TrainStationInterface{}
}

func (m *TrainStationInterface) Find(ctx context.Context, trainId string) ([]domain.TrainStation, error) {
	m.Calls.Find = append(m.Calls.Find, trainId)
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, trainId)
	}
	panic(errors.New("it should not be called"))
}
