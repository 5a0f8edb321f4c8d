package domain

// domain package contains the Domain Models and Interfaces of drydock.
//
// `domain/ENTITY.go` has high-level entities (Domain Model types) and functions.
// For example, `domain/contextversion.go` contains the `ContextVersion` entity and its state machine.
//
// `domain/ENTITY/db` directory contains the repository interface of the entity,
// `domain/ENTITY/db/postgres` is its implementation on PostgreSQL,
// and `domain/ENTITY/db/mock` is a hand written mock for tests.
//
// # Entities
//
// - `contextversion`: one concrete build input (source files, Dockerfile and app code version) and its build outcome.
// ContextVersions are fingerprinted, and a ContextVersion having the same fingerprint is reused instead of building again.
//
// - `build`: a user-facing grouping of ContextVersions triggered together.
// A Build is completed when all of its ContextVersions are completed, or failed when any of them errored.
//
// - `instance`: a deployment bound to a Build. An Instance has at most one active container on a dock.
//
// - `isolation`: a group of instances (master + children) which are stopped and started together.
//
// - `autoisolation`: a declarative dependency graph of a master instance, used to materialize multi-service clusters.
//
// - `inputcluster`: a description of a multi-service cluster (repo, branch and compose files).
//
// And others:
//
// - `job`: the job queue. Workers (`cmd/workers`) pop jobs from the queue, and handle them with `engine` packages.
//
// - `eventlock`: short-lived key based mutual exclusion, used to de-duplicate container runtime events.
