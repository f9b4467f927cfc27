package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	kdb "github.com/opst/pht-central/pkg/db"
	kpgclient "github.com/opst/pht-central/pkg/db/postgres/client"
	kpool "github.com/opst/pht-central/pkg/db/postgres/pool"
	kpgschema "github.com/opst/pht-central/pkg/db/postgres/schema"
	kpgstation "github.com/opst/pht-central/pkg/db/postgres/station"
	kpgtrain "github.com/opst/pht-central/pkg/db/postgres/train"
	xe "github.com/opst/pht-central/pkg/errors"
)

type dbPostgres struct {
	pool             kpool.Pool
	trains           kdb.TrainInterface
	trainStations    kdb.TrainStationInterface
	stations         kdb.StationInterface
	registryProjects kdb.RegistryProjectInterface
	clients          kdb.ClientInterface
}

type Config struct {
	// upgrade the schema on connect.
	Upgrade bool
}

type Option func(*Config) *Config

// WithUpgrade makes New upgrade the database schema.
func WithUpgrade() Option {
	return func(c *Config) *Config {
		c.Upgrade = true
		return c
	}
}

func New(ctx context.Context, url string, options ...Option) (kdb.Database, error) {
	c := Config{}
	for _, option := range options {
		c = *option(&c)
	}

	p, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, xe.Classify(xe.TransientIntegration, "cannot connect to database", err)
	}
	pool := kpool.Wrap(p)

	if c.Upgrade {
		if err := kpgschema.New(pool).Upgrade(ctx); err != nil {
			pool.Close()
			return nil, xe.WrapWithNote("schema upgrade", err)
		}
	}

	return Wrap(pool), nil
}

// Wrap pool as kdb.Database.
func Wrap(pool kpool.Pool) kdb.Database {
	return &dbPostgres{
		pool:             pool,
		trains:           kpgtrain.New(pool),
		trainStations:    kpgtrain.NewTrainStation(pool),
		stations:         kpgstation.New(pool),
		registryProjects: kpgstation.NewRegistryProject(pool),
		clients:          kpgclient.New(pool),
	}
}

func (d *dbPostgres) Trains() kdb.TrainInterface {
	return d.trains
}

func (d *dbPostgres) TrainStations() kdb.TrainStationInterface {
	return d.trainStations
}

func (d *dbPostgres) Stations() kdb.StationInterface {
	return d.stations
}

func (d *dbPostgres) RegistryProjects() kdb.RegistryProjectInterface {
	return d.registryProjects
}

func (d *dbPostgres) Clients() kdb.ClientInterface {
	return d.clients
}

func (d *dbPostgres) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

func (d *dbPostgres) Close() error {
	d.pool.Close()
	return nil
}
