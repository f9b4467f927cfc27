package domain

// domain package contains the Domain Models of the PHT central orchestration core.
//
// `domain/ENTITY.go` has the entity types and their statuses.
// Persistence of them is described in `pkg/db`, and is implemented in `pkg/db/postgres`.
//
// # Entities
//
// - `train`: a containerized analysis workload.
// A Train moves (configurator, build, run) statuses forward only by lifecycle transitions (see `pkg/lifecycle`).
//
// - `station`: a data-holding site. It has its own registry project and public key.
//
// - `train station`: a Train targeting a Station, with the approval of the Station.
// Approvals are inputs for the approval gate, and never written by the lifecycle.
//
// - `client`: a credential pair of an identity. Clients of services are synchronized
// to the secret store and to registry webhooks (see `pkg/credsync`).
//
// - `result`: the outcome of a finished Train.
//
// - `registry project`: a project in the container registry.
