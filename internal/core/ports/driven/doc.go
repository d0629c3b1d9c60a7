// Package driven defines the interfaces the pipeline core depends on:
// source watchers, the document store, state persistence, the repository
// queue and the embedding service. Adapters implement these interfaces.
package driven
