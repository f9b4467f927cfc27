package credsync

import (
	"context"

	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/mq"
	"github.com/opst/pht-central/pkg/secretstore"
)

// StationSync is the payload of the station.secretSync command.
type StationSync struct {
	StationId string `json:"station_id"`

	// secure id which the station had before. Optional.
	PreviousSecureId string `json:"previous_secure_id,omitempty"`
}

// StationKey is the secret saved for a station.
type StationKey struct {
	RSAPublicKey string `json:"rsa_public_key"`
}

// HandleStationSync is a mq.Handler for the station.secretSync command.
func (s *Syncer) HandleStationSync(ctx context.Context, envelope mq.Envelope) error {
	req, err := mq.Decode[StationSync](envelope)
	if err != nil {
		return err
	}
	if req.StationId == "" {
		return xe.New(xe.Validation, "station_id is required")
	}
	return s.SyncPublicKey(ctx, req.StationId, req.PreviousSecureId)
}

// SyncPublicKey mirrors the public key of the station to the secret store.
//
// When the secure id of the station has been changed from previousSecureId,
// the secret at the old path is deleted, best effort.
//
// A station without public key gets its flag cleared.
func (s *Syncer) SyncPublicKey(ctx context.Context, stationId string, previousSecureId string) error {
	station, err := s.stations.Get(ctx, stationId)
	if err != nil {
		return xe.Wrap(err)
	}
	logger := s.logger.WithField("station", station.Id)

	if previousSecureId != "" && previousSecureId != station.SecureId {
		if err := s.store.Delete(ctx, secretstore.StationPath(previousSecureId)); err != nil {
			logger.WithError(err).Warn("secret at the previous secure id is not deleted")
		}
	}

	if station.SecureId == "" || station.PublicKey == "" {
		if !station.PublicKeySaved {
			return nil
		}
		return xe.Wrap(s.stations.SetPublicKeySaved(ctx, station.Id, false))
	}

	if err := s.store.Save(
		ctx, secretstore.StationPath(station.SecureId), StationKey{RSAPublicKey: station.PublicKey},
	); err != nil {
		return err
	}
	if err := s.stations.SetPublicKeySaved(ctx, station.Id, true); err != nil {
		return xe.Wrap(err)
	}
	logger.Info("public key is saved")
	return nil
}
