// Package credsync propagates credentials to where they are used:
// the secret store and webhooks of the registry.
package credsync

import (
	"context"

	kdb "github.com/opst/pht-central/pkg/db"
	"github.com/opst/pht-central/pkg/domain"
	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/mq"
	"github.com/opst/pht-central/pkg/registry"
	"github.com/opst/pht-central/pkg/secretstore"
	"github.com/sirupsen/logrus"
)

// ServiceSync is the payload of the serviceSecurity.sync command.
type ServiceSync struct {
	ServiceId    string `json:"service_id"`
	ClientId     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Clients saves clients, and requests sync of them.
type Clients struct {
	clients kdb.ClientInterface
	pub     mq.Publisher
}

func NewClients(clients kdb.ClientInterface, pub mq.Publisher) *Clients {
	return &Clients{clients: clients, pub: pub}
}

// Save upserts the client.
//
// After the client is committed, when it belongs to a service,
// a serviceSecurity.sync command is sent to the orchestrator.
func (c *Clients) Save(ctx context.Context, client domain.Client) error {
	if err := c.clients.Upsert(ctx, client); err != nil {
		return xe.Wrap(err)
	}
	if client.ServiceId == nil {
		return nil
	}
	return mq.Send(
		ctx, c.pub, mq.OrchestratorCommand, mq.ServiceSecuritySync,
		ServiceSync{
			ServiceId:    client.ServiceId.String(),
			ClientId:     client.Id,
			ClientSecret: client.Secret,
		},
	)
}

// Syncer handles commands which mirror credentials.
type Syncer struct {
	store    secretstore.Store
	stations kdb.StationInterface
	projects kdb.RegistryProjectInterface
	webhook  registry.WebhookInterface
	specials []string
	pub      mq.Publisher
	logger   logrus.FieldLogger
}

// NewSyncer creates a Syncer.
//
// specials are names of registry projects which should have the webhook
// in addition to projects of stations.
func NewSyncer(
	store secretstore.Store,
	stations kdb.StationInterface,
	projects kdb.RegistryProjectInterface,
	webhook registry.WebhookInterface,
	specials []string,
	pub mq.Publisher,
	logger logrus.FieldLogger,
) *Syncer {
	return &Syncer{
		store:    store,
		stations: stations,
		projects: projects,
		webhook:  webhook,
		specials: specials,
		pub:      pub,
		logger:   logger.WithField("component", "credsync"),
	}
}

// Register handlers to the dispatcher.
func (s *Syncer) Register(d *mq.Dispatcher) error {
	for _, h := range []struct {
		typ     mq.Type
		handler mq.Handler
	}{
		{typ: mq.ServiceSecuritySync, handler: s.HandleServiceSync},
		{typ: mq.SecretStorageRobotSave, handler: s.HandleRobotSave},
		{typ: mq.SecretStorageRobotDelete, handler: s.HandleRobotDelete},
		{typ: mq.StationSecretSync, handler: s.HandleStationSync},
	} {
		if err := d.Register(h.typ, h.handler); err != nil {
			return err
		}
	}
	return nil
}

// HandleServiceSync is a mq.Handler for the serviceSecurity.sync command.
func (s *Syncer) HandleServiceSync(ctx context.Context, envelope mq.Envelope) error {
	req, err := mq.Decode[ServiceSync](envelope)
	if err != nil {
		return err
	}
	serviceId, err := domain.AsServiceId(req.ServiceId)
	if err != nil {
		return xe.Classify(xe.Validation, "unknown service", err)
	}
	if req.ClientId == "" {
		return xe.New(xe.Validation, "client_id is required")
	}
	return s.SyncService(ctx, serviceId, domain.Credential{Id: req.ClientId, Secret: req.ClientSecret})
}

// SyncService mirrors the credential of the service.
//
// For the registry, every project concerned gets the webhook carrying the credential.
// For others, the credential is saved in the secret store.
func (s *Syncer) SyncService(ctx context.Context, serviceId domain.ServiceId, cred domain.Credential) error {
	logger := s.logger.WithField("service", serviceId)

	switch serviceId {
	case domain.ResultService, domain.TrainBuilder, domain.TrainRouter:
		if err := s.store.Save(ctx, secretstore.ServicePath(serviceId), cred); err != nil {
			return err
		}
		logger.Info("service credential is saved")
		return nil
	case domain.Registry:
		return s.ensureWebhooks(ctx, cred)
	default:
		return xe.Errorf(xe.Validation, "service %s is not supported", serviceId)
	}
}
