package client

import (
	"context"

	kdb "github.com/opst/pht-central/pkg/db"
	kpgerr "github.com/opst/pht-central/pkg/db/postgres/errors"
	kpool "github.com/opst/pht-central/pkg/db/postgres/pool"
	"github.com/opst/pht-central/pkg/domain"
	xe "github.com/opst/pht-central/pkg/errors"
)

type clientPG struct {
	pool kpool.Pool
}

var _ kdb.ClientInterface = &clientPG{}

func New(pool kpool.Pool) *clientPG {
	return &clientPG{pool: pool}
}

func (m *clientPG) Get(ctx context.Context, clientId string) (domain.Client, error) {
	c := domain.Client{Id: clientId}
	var service *string
	if err := m.pool.QueryRow(
		ctx, `select "secret", "service_id" from "client" where "id" = $1`, clientId,
	).Scan(&c.Secret, &service); err != nil {
		return domain.Client{}, kpgerr.Classify(err, "client", clientId)
	}
	if service != nil {
		sid, err := domain.AsServiceId(*service)
		if err != nil {
			return domain.Client{}, xe.Wrap(err)
		}
		c.ServiceId = &sid
	}
	return c, nil
}

func (m *clientPG) FindByService(ctx context.Context, serviceId domain.ServiceId) ([]domain.Client, error) {
	rows, err := m.pool.Query(
		ctx,
		`select "id", "secret" from "client" where "service_id" = $1 order by "id"`,
		serviceId.String(),
	)
	if err != nil {
		return nil, kpgerr.Classify(err, "client", "of "+serviceId.String())
	}
	defer rows.Close()

	ret := []domain.Client{}
	for rows.Next() {
		sid := serviceId
		c := domain.Client{ServiceId: &sid}
		if err := rows.Scan(&c.Id, &c.Secret); err != nil {
			return nil, xe.Wrap(err)
		}
		ret = append(ret, c)
	}
	if err := rows.Err(); err != nil {
		return nil, kpgerr.Classify(err, "client", "of "+serviceId.String())
	}
	return ret, nil
}

func (m *clientPG) Upsert(ctx context.Context, client domain.Client) error {
	var service *string
	if client.ServiceId != nil {
		s := client.ServiceId.String()
		service = &s
	}
	if _, err := m.pool.Exec(
		ctx,
		`
		insert into "client" ("id", "secret", "service_id") values ($1, $2, $3)
		on conflict ("id") do update
		set "secret" = excluded."secret", "service_id" = excluded."service_id"
		`,
		client.Id, client.Secret, service,
	); err != nil {
		return kpgerr.Classify(err, "client", client.Id)
	}
	return nil
}
