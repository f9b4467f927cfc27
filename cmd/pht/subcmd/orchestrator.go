package subcmd

import (
	"context"

	kcs "github.com/opst/pht-central/pkg/configs/service"
	"github.com/opst/pht-central/pkg/credsync"
	kdb "github.com/opst/pht-central/pkg/db"
	kpg "github.com/opst/pht-central/pkg/db/postgres"
	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/lifecycle"
	"github.com/opst/pht-central/pkg/mq"
	"github.com/opst/pht-central/pkg/ops"
	"github.com/opst/pht-central/pkg/registry"
	"github.com/opst/pht-central/pkg/secretstore/awssm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var upgradeSchema bool

var orchestratorCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "handles build of trains and sync of credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "orchestrator", buildOrchestrator)
	},
}

func init() {
	orchestratorCmd.Flags().BoolVar(
		&upgradeSchema, "upgrade-schema", false, "upgrade the database schema before start",
	)
	RootCmd.AddCommand(orchestratorCmd)
}

func buildOrchestrator(
	ctx context.Context, conf *kcs.Config, transport mq.Transport, logger logrus.FieldLogger,
) (*service, error) {
	svc := &service{}

	regconf, err := kcs.Need(conf.Registry(), "registry")
	if err != nil {
		return svc, err
	}
	ssconf, err := kcs.Need(conf.SecretStore(), "secretStore")
	if err != nil {
		return svc, err
	}

	if conf.Database() == "" {
		return svc, xe.New(xe.Validation, "config: database is required")
	}

	options := []kpg.Option{}
	if upgradeSchema {
		options = append(options, kpg.WithUpgrade())
	}
	db, err := kpg.New(ctx, conf.Database(), options...)
	if err != nil {
		return svc, err
	}
	svc.onClose(db.Close)

	store, err := awssm.New(ctx, awssm.Config{
		Region:   ssconf.Region(),
		Endpoint: ssconf.Endpoint(),
		Prefix:   ssconf.Prefix(),
	}, logger)
	if err != nil {
		return svc, err
	}

	callback := ""
	if u := regconf.WebhookCallback(); u != nil {
		callback = u.String()
	}
	harbor := registry.NewHarbor(regconf.Connection(), callback, nil)

	d := mq.NewDispatcher(
		"orchestrator", mq.OrchestratorCommand, transport, logger,
		mq.TrainBuild,
		mq.ServiceSecuritySync,
		mq.SecretStorageRobotSave,
		mq.SecretStorageRobotDelete,
		mq.StationSecretSync,
	)

	lc := lifecycle.New(
		lifecycle.Config{Bypass: conf.Demo()},
		db.Trains(), db.TrainStations(), transport, logger,
	)
	if err := lc.Register(d); err != nil {
		return svc, err
	}

	syncer := credsync.NewSyncer(
		store, db.Stations(), db.RegistryProjects(), harbor,
		regconf.Projects().Specials(), transport, logger,
	)
	if err := syncer.Register(d); err != nil {
		return svc, err
	}

	svc.dispatchers = append(svc.dispatchers, d)
	svc.options = append(
		svc.options,
		ops.WithProbe("database", databaseProbe(db)),
		ops.WithRegistryHook(db.Clients(), transport),
	)
	return svc, nil
}

func databaseProbe(db kdb.Database) ops.Probe {
	return func(ctx context.Context) error {
		return db.Ping(ctx)
	}
}
