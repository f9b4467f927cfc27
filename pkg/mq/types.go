package mq

// RoutingKey addresses a queue of a service, or a topic of events.
type RoutingKey string

func (k RoutingKey) String() string {
	return string(k)
}

// routing keys of inbound command queues, one per service domain.
const (
	OrchestratorCommand  RoutingKey = "orchestrator.command"
	TrainManagerCommand  RoutingKey = "trainManager.command"
	ResultServiceCommand RoutingKey = "resultService.command"
	ExecutionCommand     RoutingKey = "execution.command"
	RegistryCommand      RoutingKey = "registry.command"
)

// EventKey returns the routing key of the domain event in the event topic.
//
// Observers (for example, realtime fan-out) bind "event.#".
func EventKey(t Type) RoutingKey {
	return RoutingKey("event." + string(t))
}

// commands
const (
	// ask the execution service to start building a train.
	ExecutionStart Type = "execution.start"

	TrainBuild Type = "train.build"

	ServiceSecuritySync      Type = "serviceSecurity.sync"
	SecretStorageRobotSave   Type = "secretStorage.robotSave"
	SecretStorageRobotDelete Type = "secretStorage.robotDelete"
	StationSecretSync        Type = "station.secretSync"

	RegistryProjectLink Type = "registry.projectLink"

	ResultServiceDownload Type = "resultService.download"
	ResultServiceExtract  Type = "resultService.extract"
	ResultServiceStatus   Type = "resultService.status"

	TrainManagerExtract Type = "trainManager.extract"
)

// events
const (
	TrainUpdated Type = "train.updated"

	RegistryEvent Type = "registry.event"

	ResultServiceStatusReported Type = "resultService.statusReported"

	TrainManagerExtracted Type = "trainManager.extracted"
)
