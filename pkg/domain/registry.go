package domain

type Ecosystem string

const (
	EcosystemDefault Ecosystem = "default"
	EcosystemAachen  Ecosystem = "aachen"
)

type RegistryProject struct {
	Id string

	// name of the project in the registry.
	ExternalName string

	Ecosystem Ecosystem
}
