package credsync

import (
	"context"

	"github.com/opst/pht-central/pkg/domain"
	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/mq"
	"github.com/opst/pht-central/pkg/secretstore"
)

// RobotSave is the payload of the secretStorage.robotSave command.
type RobotSave struct {
	Name   string `json:"name"`
	Id     string `json:"id"`
	Secret string `json:"secret"`
}

// RobotDelete is the payload of the secretStorage.robotDelete command.
type RobotDelete struct {
	Name string `json:"name"`
}

// ProjectLink is the payload of the registry.projectLink command.
type ProjectLink struct {
	Id string `json:"id"`
}

// HandleRobotSave is a mq.Handler for the secretStorage.robotSave command.
//
// The robot credential is saved. When the robot is of the registry,
// each registry project in the default ecosystem is requested to be linked.
func (s *Syncer) HandleRobotSave(ctx context.Context, envelope mq.Envelope) error {
	req, err := mq.Decode[RobotSave](envelope)
	if err != nil {
		return err
	}
	if req.Name == "" {
		return xe.New(xe.Validation, "name is required")
	}

	if err := s.store.Save(
		ctx, secretstore.RobotPath(req.Name), domain.Credential{Id: req.Id, Secret: req.Secret},
	); err != nil {
		return err
	}
	if req.Name != domain.Registry.String() {
		return nil
	}

	projects, err := s.projects.Find(ctx, domain.EcosystemDefault)
	if err != nil {
		return xe.Wrap(err)
	}
	for _, p := range projects {
		if err := mq.Send(
			ctx, s.pub, mq.RegistryCommand, mq.RegistryProjectLink, ProjectLink{Id: p.Id},
		); err != nil {
			return err
		}
	}
	s.logger.WithField("robot", req.Name).Infof("%d project(s) are requested to be linked", len(projects))
	return nil
}

// HandleRobotDelete is a mq.Handler for the secretStorage.robotDelete command.
//
// It is best effort. Failures are logged and never redelivered.
func (s *Syncer) HandleRobotDelete(ctx context.Context, envelope mq.Envelope) error {
	req, err := mq.Decode[RobotDelete](envelope)
	if err != nil {
		return err
	}
	if req.Name == "" {
		return xe.New(xe.Validation, "name is required")
	}

	if err := s.store.Delete(ctx, secretstore.RobotPath(req.Name)); err != nil {
		s.logger.WithError(err).WithField("robot", req.Name).Warn("robot secret is not deleted")
	}
	return nil
}
