// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// IndexService runs an archive through extraction, chunking and embedding
// into the local collection, then hands the completed collection to the
// Syncer, which converges the remote collection through the states
// INIT, RESET_ALL, RESET_TARGET, DIFF, APPLY and DONE (or ABORTED).
// CollectionService administers remote collections and WatchService
// re-runs the index pipeline when an archive changes.
package services
