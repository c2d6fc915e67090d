// Package sqlite provides the SQLite-backed implementation of driven.LocalStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation.
//
// # Layout
//
// Each collection lives in its own directory, <output_dir>/<name>.chromasync/,
// holding collection.db and manifest.toml. The manifest records the model and
// dimensionality the stored vectors were built with.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
