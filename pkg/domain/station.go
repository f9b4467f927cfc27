package domain

import "fmt"

type Station struct {
	Id       string
	SecureId string

	// hex encoded public key.
	PublicKey string

	// id of the registry project of this station. nil if not provisioned.
	RegistryProjectId *string

	// the public key is mirrored in the secret store.
	PublicKeySaved bool
}

type TrainStationApprovalStatus string

const (
	ApprovalPending  TrainStationApprovalStatus = "pending"
	ApprovalApproved TrainStationApprovalStatus = "approved"
	ApprovalRejected TrainStationApprovalStatus = "rejected"
)

func (s TrainStationApprovalStatus) String() string {
	return string(s)
}

func AsTrainStationApprovalStatus(s string) (TrainStationApprovalStatus, error) {
	switch s {
	case string(ApprovalPending):
		return ApprovalPending, nil
	case string(ApprovalApproved):
		return ApprovalApproved, nil
	case string(ApprovalRejected):
		return ApprovalRejected, nil
	default:
		return "", fmt.Errorf("'%s' is not TrainStationApprovalStatus", s)
	}
}

// TrainStation links a Train to a Station it targets.
type TrainStation struct {
	Id             string
	TrainId        string
	StationId      string
	ApprovalStatus TrainStationApprovalStatus
}
