package lifecycle

import (
	"context"

	kdb "github.com/opst/pht-central/pkg/db"
	"github.com/opst/pht-central/pkg/domain"
	xe "github.com/opst/pht-central/pkg/errors"
)

// Gate answers whether stations have approved a train.
type Gate struct {
	trainStations kdb.TrainStationInterface
}

func NewGate(trainStations kdb.TrainStationInterface) *Gate {
	return &Gate{trainStations: trainStations}
}

// PendingApprovals counts stations which have not approved the train yet.
//
// Rejected stations are counted too. It never mutates anything.
//
// # Returns
//
// - int: number of train stations not approved
//
// - []string: ids of these stations, in the order persistence returns
//
// - error
func (g *Gate) PendingApprovals(ctx context.Context, trainId string) (int, []string, error) {
	tss, err := g.trainStations.Find(ctx, trainId)
	if err != nil {
		return 0, nil, xe.Wrap(err)
	}

	pending := []string{}
	for _, ts := range tss {
		if ts.ApprovalStatus == domain.ApprovalApproved {
			continue
		}
		pending = append(pending, ts.StationId)
	}
	return len(pending), pending, nil
}
