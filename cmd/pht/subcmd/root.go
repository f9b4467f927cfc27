// Package subcmd defines commands of pht, one per service of the central platform.
package subcmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	kcs "github.com/opst/pht-central/pkg/configs/service"
	"github.com/opst/pht-central/pkg/mq"
	kamqp "github.com/opst/pht-central/pkg/mq/amqp"
	"github.com/opst/pht-central/pkg/ops"
	"github.com/opst/pht-central/pkg/utils/filewatch"
	"github.com/opst/pht-central/pkg/utils/retry"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const envConfig = "PHT_CONFIG"

var RootCmd = &cobra.Command{
	Use:          "pht",
	Short:        "services of the central platform of the Personal Health Train",
	SilenceUsage: true,
}

var (
	configPath string
	logLevel   string
)

func init() {
	RootCmd.PersistentFlags().StringVar(
		&configPath, "config", os.Getenv(envConfig),
		"path to the config file. (default: $"+envConfig+")",
	)
	RootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "overrides logLevel of the config file",
	)
}

// service is a set of dispatchers and the ops server, to be run together.
type service struct {
	dispatchers []*mq.Dispatcher
	options     []ops.Option
	closers     []func() error
}

func (s *service) onClose(f func() error) {
	s.closers = append(s.closers, f)
}

func (s *service) close(logger logrus.FieldLogger) {
	for i := len(s.closers) - 1; 0 <= i; i-- {
		if err := s.closers[i](); err != nil {
			logger.WithError(err).Warn("failed to release resource")
		}
	}
}

// builder wires a service up.
//
// The returned service should be closed even if err is not nil.
type builder func(
	ctx context.Context, conf *kcs.Config, transport mq.Transport, logger logrus.FieldLogger,
) (*service, error)

// run loads the config, builds the service and runs it
// until a signal is received or the config file is modified.
func run(cmd *cobra.Command, name string, build builder) error {
	if configPath == "" {
		return errors.New("--config (or $" + envConfig + ") is required")
	}
	conf, err := kcs.LoadConfig(configPath)
	if err != nil {
		return err
	}

	base := logrus.New()
	base.SetFormatter(&logrus.JSONFormatter{})
	base.SetLevel(conf.LogLevel())
	if logLevel != "" {
		l, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		base.SetLevel(l)
	}
	logger := base.WithField("service", name)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel, err := filewatch.UntilModified(ctx, logger, configPath)
	if err != nil {
		return err
	}
	defer cancel()

	a := conf.AMQP()
	transport, err := kamqp.DialUntil(ctx, kamqp.Config{
		URL:           a.URL(),
		Exchange:      a.Exchange(),
		EventExchange: a.EventExchange(),
		Prefetch:      a.Prefetch(),
	}, logger, retry.ExponentialBackoff(time.Second, 2, 30*time.Second))
	if err != nil {
		return err
	}
	defer transport.Close()

	svc, err := build(ctx, conf, transport, logger)
	if svc != nil {
		defer svc.close(logger)
	}
	if err != nil {
		return err
	}

	server := ops.New(ops.Config{Listen: conf.Ops().Listen()}, logger, svc.options...)

	eg, gctx := errgroup.WithContext(ctx)
	for _, d := range svc.dispatchers {
		eg.Go(func() error { return d.Start(gctx) })
	}
	eg.Go(func() error { return server.Start(gctx) })

	err = eg.Wait()
	if cause := context.Cause(ctx); cause != nil {
		logger.WithField("cause", cause.Error()).Info("stopping")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
