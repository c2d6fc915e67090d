// Package domain defines the core business entities for chromasync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RawDocument: A named byte stream read from an archive
//   - Document: Decoded text with a type hint
//   - Chunk: A contiguous span of a document
//   - ChunkRecord: The persisted unit of a collection
//   - SyncPlan: The add/update/delete sets that converge a remote collection
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
