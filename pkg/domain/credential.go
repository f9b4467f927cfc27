package domain

import "fmt"

// ServiceId identifies a service of the platform.
type ServiceId string

const (
	ResultService ServiceId = "RESULT_SERVICE"
	TrainBuilder  ServiceId = "TRAIN_BUILDER"
	TrainRouter   ServiceId = "TRAIN_ROUTER"
	Registry      ServiceId = "REGISTRY"
)

func (s ServiceId) String() string {
	return string(s)
}

func AsServiceId(s string) (ServiceId, error) {
	switch s {
	case string(ResultService):
		return ResultService, nil
	case string(TrainBuilder):
		return TrainBuilder, nil
	case string(TrainRouter):
		return TrainRouter, nil
	case string(Registry):
		return Registry, nil
	default:
		return "", fmt.Errorf("'%s' is not ServiceId", s)
	}
}

// Client is a credential pair of an identity.
type Client struct {
	Id     string
	Secret string

	// service which the client belongs to. nil for clients of end users.
	ServiceId *ServiceId
}

// Credential is what is synchronized to dependents of a client.
type Credential struct {
	Id     string `json:"id"`
	Secret string `json:"secret"`
}

func (c Client) Credential() Credential {
	return Credential{Id: c.Id, Secret: c.Secret}
}
