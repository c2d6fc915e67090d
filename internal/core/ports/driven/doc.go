// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - DocumentSource: Streams raw entries out of an archive
//   - Normaliser: Decodes raw bytes into text documents
//   - PostProcessorPipeline: Turns a document into fingerprinted chunks
//   - EmbeddingService: Generates vector embeddings
//   - LocalStore: Durable local collection and manifest
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - VectorStore: Remote vector store. Without it, runs stop after the local write.
//   - DeviceSelector: Accelerator control. Without it, the CPU fallback is skipped.
//   - FileWatcher: Change notification for watch mode.
//   - ConfigStore: Configuration file access.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
