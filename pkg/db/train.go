package db

import (
	"context"

	"github.com/opst/pht-central/pkg/domain"
)

type TrainInterface interface {
	// Get a train.
	//
	// # Returns
	//
	// - domain.Train: found train. Result is not loaded.
	//
	// - error: classified as xe.NotFound when there are no such train.
	Get(ctx context.Context, trainId string) (domain.Train, error)

	// Update statuses and the result reference of the train,
	// only while the train has not run.
	//
	// # Returns
	//
	// - error: kinds are...
	//
	//   - xe.NotFound: the train is missing.
	//
	//   - xe.InvalidState: run status of the stored train is not null.
	Update(ctx context.Context, train domain.Train) error

	// Finish the train at once with the result, in a transaction.
	//
	// The train row is locked, then the result is created and the train becomes
	// (configurator: finished, build: null, run: finished) referring the result.
	//
	// # Returns
	//
	// - domain.Train: finished train, with the created Result attached.
	//
	// - error: kinds are...
	//
	//   - xe.NotFound: the train is missing.
	//
	//   - xe.InvalidState: run status of the stored train is not null. Nothing is created.
	Finish(ctx context.Context, trainId string, result domain.Result) (domain.Train, error)
}

type TrainStationInterface interface {
	// Find train stations of the train. Empty when the train targets no stations.
	Find(ctx context.Context, trainId string) ([]domain.TrainStation, error)
}
