package subcmd

import (
	"context"

	kcs "github.com/opst/pht-central/pkg/configs/service"
	"github.com/opst/pht-central/pkg/extract"
	"github.com/opst/pht-central/pkg/mq"
	"github.com/opst/pht-central/pkg/objectstore"
	"github.com/opst/pht-central/pkg/registry/image"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var resultServiceCmd = &cobra.Command{
	Use:   "result-service",
	Short: "extracts results of trains into local archives",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "result-service", buildResultService)
	},
}

var trainManagerCmd = &cobra.Command{
	Use:   "train-manager",
	Short: "extracts results of trains and uploads them to the object storage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "train-manager", buildTrainManager)
	},
}

func init() {
	RootCmd.AddCommand(resultServiceCmd, trainManagerCmd)
}

func pipeline(conf *kcs.Config, logger logrus.FieldLogger) (*extract.Pipeline, *kcs.ResultsConfig, error) {
	regconf, err := kcs.Need(conf.Registry(), "registry")
	if err != nil {
		return nil, nil, err
	}
	results, err := kcs.Need(conf.Results(), "results")
	if err != nil {
		return nil, nil, err
	}

	puller, err := image.NewPuller(regconf.Connection(), regconf.CacheDir(), logger)
	if err != nil {
		return nil, nil, err
	}
	return extract.NewPipeline(
		regconf.Connection(),
		regconf.Projects(),
		puller,
		extract.SnapshotRuntime{Dir: results.SnapshotDir()},
		logger,
	), results, nil
}

func buildResultService(
	_ context.Context, conf *kcs.Config, transport mq.Transport, logger logrus.FieldLogger,
) (*service, error) {
	svc := &service{}
	p, results, err := pipeline(conf, logger)
	if err != nil {
		return svc, err
	}

	rs := extract.NewResultService(
		extract.ResultServiceConfig{Paths: results.Paths(), OutputDir: results.OutputDir()},
		p, transport, logger,
	)
	d := mq.NewDispatcher(
		"result-service", mq.ResultServiceCommand, transport, logger,
		mq.ResultServiceDownload, mq.ResultServiceExtract, mq.ResultServiceStatus,
	)
	if err := rs.Register(d); err != nil {
		return svc, err
	}
	svc.dispatchers = append(svc.dispatchers, d)
	return svc, nil
}

func buildTrainManager(
	_ context.Context, conf *kcs.Config, transport mq.Transport, logger logrus.FieldLogger,
) (*service, error) {
	svc := &service{}
	osconf, err := kcs.Need(conf.ObjectStorage(), "objectStorage")
	if err != nil {
		return svc, err
	}
	p, results, err := pipeline(conf, logger)
	if err != nil {
		return svc, err
	}

	uploader, err := objectstore.New(objectstore.Config{
		Endpoint:  osconf.Endpoint(),
		AccessKey: osconf.AccessKey(),
		SecretKey: osconf.SecretKey(),
		Secure:    osconf.Secure(),
		Region:    osconf.Region(),
	}, logger)
	if err != nil {
		return svc, err
	}

	tm := extract.NewTrainManager(
		extract.TrainManagerConfig{Paths: results.Paths(), WorkDir: results.WorkDir()},
		p, uploader, transport, logger,
	)
	d := mq.NewDispatcher(
		"train-manager", mq.TrainManagerCommand, transport, logger,
		mq.TrainManagerExtract,
	)
	if err := tm.Register(d); err != nil {
		return svc, err
	}
	svc.dispatchers = append(svc.dispatchers, d)
	return svc, nil
}
