// Package strata defines the core types, store contracts, and helpers used across
// the STRATA tiered storage-and-synchronization engine. It provides the Record
// unit of storage, the hot/warm/cold store interfaces, typed error codes with
// capacity-exhaustion classification, and shared utilities (retry, task runner,
// logging). Concrete backends live in subpackages such as redis (hot tier),
// sqlite (warm tier), s3 and cassandra (cold tier), while the engine package
// hosts the hybrid access layer, migration, cleanup, sync queue and telemetry.
//
// The engine is local-first and eventually consistent: callers never receive an
// error from the record facade; the worst observable outcome during an outage is
// stale or default data.
package strata
