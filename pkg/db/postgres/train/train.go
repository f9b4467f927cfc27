package train

import (
	"context"

	kdb "github.com/opst/pht-central/pkg/db"
	kpgerr "github.com/opst/pht-central/pkg/db/postgres/errors"
	kpool "github.com/opst/pht-central/pkg/db/postgres/pool"
	"github.com/opst/pht-central/pkg/domain"
	xe "github.com/opst/pht-central/pkg/errors"
)

type trainPG struct {
	pool kpool.Pool
}

var _ kdb.TrainInterface = &trainPG{}

func New(pool kpool.Pool) *trainPG {
	return &trainPG{pool: pool}
}

func (m *trainPG) Get(ctx context.Context, trainId string) (domain.Train, error) {
	var (
		realmId, configurator string
		build, run, resultId  *string
	)
	if err := m.pool.QueryRow(
		ctx,
		`
		select "realm_id", "configurator_status", "build_status", "run_status", "result_id"
		from "train" where "id" = $1
		`,
		trainId,
	).Scan(&realmId, &configurator, &build, &run, &resultId); err != nil {
		return domain.Train{}, kpgerr.Classify(err, "train", trainId)
	}

	train := domain.NewTrain(trainId, realmId)
	train.ResultId = resultId

	cs, err := domain.AsTrainConfiguratorStatus(configurator)
	if err != nil {
		return domain.Train{}, xe.Wrap(err)
	}
	train.ConfiguratorStatus = cs

	if build != nil {
		bs, err := domain.AsTrainBuildStatus(*build)
		if err != nil {
			return domain.Train{}, xe.Wrap(err)
		}
		train.BuildStatus = &bs
	}
	if run != nil {
		rs, err := domain.AsTrainRunStatus(*run)
		if err != nil {
			return domain.Train{}, xe.Wrap(err)
		}
		train.RunStatus = &rs
	}
	return train, nil
}

func (m *trainPG) Update(ctx context.Context, train domain.Train) error {
	var build, run *string
	if train.BuildStatus != nil {
		s := train.BuildStatus.String()
		build = &s
	}
	if train.RunStatus != nil {
		s := train.RunStatus.String()
		run = &s
	}

	ctag, err := m.pool.Exec(
		ctx,
		`
		update "train"
		set "configurator_status" = $2, "build_status" = $3, "run_status" = $4, "result_id" = $5
		where "id" = $1 and "run_status" is null
		`,
		train.Id, train.ConfiguratorStatus.String(), build, run, train.ResultId,
	)
	if err != nil {
		return kpgerr.Classify(err, "train", train.Id)
	}
	if ctag.RowsAffected() != 0 {
		return nil
	}

	// nothing updated: the train is missing or has run.
	stored, err := m.Get(ctx, train.Id)
	if err != nil {
		return err
	}
	return xe.Errorf(xe.InvalidState, "train has run already: %s", stored)
}

func (m *trainPG) Finish(ctx context.Context, trainId string, result domain.Result) (domain.Train, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return domain.Train{}, kpgerr.Classify(err, "train", trainId)
	}
	defer tx.Rollback(ctx)

	var realmId string
	var run *string
	if err := tx.QueryRow(
		ctx,
		`select "realm_id", "run_status" from "train" where "id" = $1 for update`,
		trainId,
	).Scan(&realmId, &run); err != nil {
		return domain.Train{}, kpgerr.Classify(err, "train", trainId)
	}
	if run != nil {
		return domain.Train{}, xe.Errorf(xe.InvalidState, "train %s has run already (run status: %s)", trainId, *run)
	}

	result.TrainId = trainId
	if err := tx.QueryRow(
		ctx,
		`
		insert into "result" ("train_id", "download_id", "status")
		values ($1, $2, $3)
		returning "id"
		`,
		trainId, result.DownloadId, result.Status.String(),
	).Scan(&result.Id); err != nil {
		return domain.Train{}, kpgerr.Classify(err, "result", "of train "+trainId)
	}

	train := domain.NewTrain(trainId, realmId)
	finished := domain.RunFinished
	train.ConfiguratorStatus = domain.ConfiguratorFinished
	train.RunStatus = &finished
	train.ResultId = &result.Id

	if _, err := tx.Exec(
		ctx,
		`
		update "train"
		set "configurator_status" = $2, "build_status" = null, "run_status" = $3, "result_id" = $4
		where "id" = $1
		`,
		trainId, train.ConfiguratorStatus.String(), finished.String(), result.Id,
	); err != nil {
		return domain.Train{}, kpgerr.Classify(err, "train", trainId)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Train{}, kpgerr.Classify(err, "train", trainId)
	}
	train.Result = &result
	return train, nil
}

type trainStationPG struct {
	pool kpool.Pool
}

var _ kdb.TrainStationInterface = &trainStationPG{}

func NewTrainStation(pool kpool.Pool) *trainStationPG {
	return &trainStationPG{pool: pool}
}

func (m *trainStationPG) Find(ctx context.Context, trainId string) ([]domain.TrainStation, error) {
	rows, err := m.pool.Query(
		ctx,
		`
		select "id", "station_id", "approval_status" from "train_station"
		where "train_id" = $1
		order by "station_id"
		`,
		trainId,
	)
	if err != nil {
		return nil, kpgerr.Classify(err, "train_station", trainId)
	}
	defer rows.Close()

	ret := []domain.TrainStation{}
	for rows.Next() {
		ts := domain.TrainStation{TrainId: trainId}
		var status string
		if err := rows.Scan(&ts.Id, &ts.StationId, &status); err != nil {
			return nil, xe.Wrap(err)
		}
		if ts.ApprovalStatus, err = domain.AsTrainStationApprovalStatus(status); err != nil {
			return nil, xe.Wrap(err)
		}
		ret = append(ret, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, kpgerr.Classify(err, "train_station", trainId)
	}
	return ret, nil
}
