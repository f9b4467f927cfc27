package db

import (
	"context"

	"github.com/opst/pht-central/pkg/domain"
)

type StationInterface interface {
	// Get a station. It returns xe.NotFound error when missing.
	Get(ctx context.Context, stationId string) (domain.Station, error)

	// FindWithRegistryProject returns stations having registry project reference.
	FindWithRegistryProject(ctx context.Context) ([]domain.Station, error)

	// SetPublicKeySaved updates the flag telling the public key is mirrored in the secret store.
	SetPublicKeySaved(ctx context.Context, stationId string, saved bool) error
}

type RegistryProjectInterface interface {
	// Find registry projects in the ecosystem.
	Find(ctx context.Context, ecosystem domain.Ecosystem) ([]domain.RegistryProject, error)
}
