package db

import "context"

type Database interface {
	Trains() TrainInterface
	TrainStations() TrainStationInterface
	Stations() StationInterface
	RegistryProjects() RegistryProjectInterface
	Clients() ClientInterface

	// Ping checks the database is reachable.
	Ping(ctx context.Context) error

	Close() error
}
