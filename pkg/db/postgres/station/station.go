package station

import (
	"context"

	kdb "github.com/opst/pht-central/pkg/db"
	kpgerr "github.com/opst/pht-central/pkg/db/postgres/errors"
	kpool "github.com/opst/pht-central/pkg/db/postgres/pool"
	"github.com/opst/pht-central/pkg/domain"
	xe "github.com/opst/pht-central/pkg/errors"
)

type stationPG struct {
	pool kpool.Pool
}

var _ kdb.StationInterface = &stationPG{}

func New(pool kpool.Pool) *stationPG {
	return &stationPG{pool: pool}
}

const selectStation = `
select "id", "secure_id", "public_key", "registry_project_id", "public_key_saved"
from "station"
`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanStation(row scanner) (domain.Station, error) {
	s := domain.Station{}
	err := row.Scan(&s.Id, &s.SecureId, &s.PublicKey, &s.RegistryProjectId, &s.PublicKeySaved)
	return s, err
}

func (m *stationPG) Get(ctx context.Context, stationId string) (domain.Station, error) {
	s, err := scanStation(m.pool.QueryRow(ctx, selectStation+`where "id" = $1`, stationId))
	if err != nil {
		return domain.Station{}, kpgerr.Classify(err, "station", stationId)
	}
	return s, nil
}

func (m *stationPG) FindWithRegistryProject(ctx context.Context) ([]domain.Station, error) {
	rows, err := m.pool.Query(
		ctx, selectStation+`where "registry_project_id" is not null order by "id"`,
	)
	if err != nil {
		return nil, kpgerr.Classify(err, "station", "(with registry project)")
	}
	defer rows.Close()

	ret := []domain.Station{}
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		ret = append(ret, s)
	}
	if err := rows.Err(); err != nil {
		return nil, kpgerr.Classify(err, "station", "(with registry project)")
	}
	return ret, nil
}

func (m *stationPG) SetPublicKeySaved(ctx context.Context, stationId string, saved bool) error {
	ctag, err := m.pool.Exec(
		ctx, `update "station" set "public_key_saved" = $2 where "id" = $1`, stationId, saved,
	)
	if err != nil {
		return kpgerr.Classify(err, "station", stationId)
	}
	if ctag.RowsAffected() == 0 {
		return kdb.Missing("station", stationId)
	}
	return nil
}

type registryProjectPG struct {
	pool kpool.Pool
}

var _ kdb.RegistryProjectInterface = &registryProjectPG{}

func NewRegistryProject(pool kpool.Pool) *registryProjectPG {
	return &registryProjectPG{pool: pool}
}

func (m *registryProjectPG) Find(ctx context.Context, ecosystem domain.Ecosystem) ([]domain.RegistryProject, error) {
	rows, err := m.pool.Query(
		ctx,
		`
		select "id", "external_name" from "registry_project"
		where "ecosystem" = $1
		order by "id"
		`,
		string(ecosystem),
	)
	if err != nil {
		return nil, kpgerr.Classify(err, "registry_project", string(ecosystem))
	}
	defer rows.Close()

	ret := []domain.RegistryProject{}
	for rows.Next() {
		p := domain.RegistryProject{Ecosystem: ecosystem}
		if err := rows.Scan(&p.Id, &p.ExternalName); err != nil {
			return nil, xe.Wrap(err)
		}
		ret = append(ret, p)
	}
	if err := rows.Err(); err != nil {
		return nil, kpgerr.Classify(err, "registry_project", string(ecosystem))
	}
	return ret, nil
}
