package db

import (
	"context"

	"github.com/opst/pht-central/pkg/domain"
)

type ClientInterface interface {
	// Get a client. It returns xe.NotFound error when missing.
	Get(ctx context.Context, clientId string) (domain.Client, error)

	// Find clients belonging to the service.
	FindByService(ctx context.Context, serviceId domain.ServiceId) ([]domain.Client, error)

	// Upsert creates or updates the client, and commits.
	Upsert(ctx context.Context, client domain.Client) error
}
