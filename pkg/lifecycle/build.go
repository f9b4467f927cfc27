// Package lifecycle drives trains through their build lifecycle.
package lifecycle

import (
	"context"
	"strings"

	kdb "github.com/opst/pht-central/pkg/db"
	"github.com/opst/pht-central/pkg/domain"
	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/mq"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Bypass (demo mode) skips the approval guard and execution,
	// and finishes the train at once with a synthesized result.
	Bypass bool
}

// TrainRef is the payload of commands addressing a train.
type TrainRef struct {
	TrainId string `json:"train_id"`
}

// TrainUpdated is the payload of the train.updated event.
type TrainUpdated struct {
	Id                 string  `json:"id"`
	RealmId            string  `json:"realm_id"`
	ConfiguratorStatus string  `json:"configurator_status"`
	BuildStatus        *string `json:"build_status"`
	RunStatus          *string `json:"run_status"`
	ResultId           *string `json:"result_id"`
}

func trainUpdated(t domain.Train) TrainUpdated {
	ev := TrainUpdated{
		Id:                 t.Id,
		RealmId:            t.RealmId,
		ConfiguratorStatus: t.ConfiguratorStatus.String(),
		ResultId:           t.ResultId,
	}
	if t.BuildStatus != nil {
		s := t.BuildStatus.String()
		ev.BuildStatus = &s
	}
	if t.RunStatus != nil {
		s := t.RunStatus.String()
		ev.RunStatus = &s
	}
	return ev
}

type Lifecycle struct {
	conf   Config
	trains kdb.TrainInterface
	gate   *Gate
	pub    mq.Publisher
	logger logrus.FieldLogger
}

func New(
	conf Config,
	trains kdb.TrainInterface,
	trainStations kdb.TrainStationInterface,
	pub mq.Publisher,
	logger logrus.FieldLogger,
) *Lifecycle {
	return &Lifecycle{
		conf:   conf,
		trains: trains,
		gate:   NewGate(trainStations),
		pub:    pub,
		logger: logger.WithField("component", "lifecycle"),
	}
}

// Build moves the train into its build phase.
//
// Without bypass, every station should have approved the train.
// Then an execution.start command is published and the train becomes
// (configurator: finished, build: starting).
//
// With bypass, the train becomes (configurator: finished, run: finished)
// with a finished Result.
//
// # Returns
//
// - domain.Train: updated train
//
// - error: kinds are...
//
//   - xe.NotFound: the train is missing.
//
//   - xe.InvalidState: the train has been built once, or its build is in progress.
//
//   - xe.Precondition: some stations have not approved. Nothing is changed.
func (l *Lifecycle) Build(ctx context.Context, trainId string) (domain.Train, error) {
	train, err := l.trains.Get(ctx, trainId)
	if err != nil {
		return domain.Train{}, xe.Wrap(err)
	}
	if train.Built() {
		return domain.Train{}, xe.Errorf(
			xe.InvalidState, "train %s can no longer be built (run status: %s)",
			train.Id, *train.RunStatus,
		)
	}
	if train.Building() {
		return domain.Train{}, xe.Errorf(
			xe.InvalidState, "train %s is being built (build status: %s)",
			train.Id, *train.BuildStatus,
		)
	}

	if l.conf.Bypass {
		return l.finishImmediately(ctx, train)
	}

	count, stations, err := l.gate.PendingApprovals(ctx, train.Id)
	if err != nil {
		return domain.Train{}, xe.Wrap(err)
	}
	if 0 < count {
		return domain.Train{}, xe.Errorf(
			xe.Precondition, "%d station(s) have not approved train %s yet: %s",
			count, train.Id, strings.Join(stations, ", "),
		)
	}

	if err := mq.Send(
		ctx, l.pub, mq.ExecutionCommand, mq.ExecutionStart, TrainRef{TrainId: train.Id},
	); err != nil {
		return domain.Train{}, xe.Wrap(err)
	}

	starting := domain.BuildStarting
	train.ConfiguratorStatus = domain.ConfiguratorFinished
	train.BuildStatus = &starting
	if err := l.trains.Update(ctx, train); err != nil {
		return domain.Train{}, xe.Wrap(err)
	}

	l.notify(ctx, train)
	return train, nil
}

func (l *Lifecycle) finishImmediately(ctx context.Context, train domain.Train) (domain.Train, error) {
	finished, err := l.trains.Finish(ctx, train.Id, domain.Result{
		DownloadId: domain.DemoDownloadId,
		Status:     domain.ResultFinished,
	})
	if err != nil {
		return domain.Train{}, xe.Wrap(err)
	}

	l.logger.WithField("train", finished.Id).Info("bypass: train is finished without execution")
	l.notify(ctx, finished)
	return finished, nil
}

// notify observers of the change. It is best effort: the change has been committed.
func (l *Lifecycle) notify(ctx context.Context, train domain.Train) {
	if err := mq.Emit(ctx, l.pub, mq.TrainUpdated, trainUpdated(train)); err != nil {
		l.logger.WithError(err).WithField("train", train.Id).Warn("failed to emit train.updated")
	}
}

// HandleBuild is a mq.Handler for the train.build command.
func (l *Lifecycle) HandleBuild(ctx context.Context, envelope mq.Envelope) error {
	ref, err := mq.Decode[TrainRef](envelope)
	if err != nil {
		return err
	}
	if ref.TrainId == "" {
		return xe.New(xe.Validation, "train_id is required")
	}

	train, err := l.Build(ctx, ref.TrainId)
	if err != nil {
		return err
	}
	l.logger.WithField("train", train.Id).Infof("build requested: %s", train)
	return nil
}

// Register handlers to the dispatcher.
func (l *Lifecycle) Register(d *mq.Dispatcher) error {
	return d.Register(mq.TrainBuild, l.HandleBuild)
}
