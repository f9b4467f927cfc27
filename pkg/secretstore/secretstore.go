// Package secretstore mirrors credentials into an external key-value secret store.
package secretstore

import (
	"context"

	"github.com/opst/pht-central/pkg/domain"
)

// Store is a secret store keyed by path.
type Store interface {
	// Save value at path, as JSON.
	//
	// It creates the secret when missing, and replaces it otherwise (last write wins).
	Save(ctx context.Context, path string, value any) error

	// Delete the secret at path.
	//
	// It returns xe.NotFound error when there are no secret at path.
	Delete(ctx context.Context, path string) error
}

func ServicePath(id domain.ServiceId) string {
	return "services/" + id.String()
}

func StationPath(secureId string) string {
	return "stations/" + secureId
}

func RobotPath(name string) string {
	return "robots/" + name
}
