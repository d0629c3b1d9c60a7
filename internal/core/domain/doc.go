// Package domain contains the core business entities of the ingestion
// pipeline: change events produced by watchers, the artifacts derived from a
// file, persisted pipeline state and the repository work queue.
//
// Domain types have no dependencies on adapters or external services.
package domain
