// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - IndexStore: Embedding index persistence (JSON file)
//   - ProjectMappingStore: Project name -> external ID persistence
//   - ConfigStore: Application configuration
//   - PromptStore: Prompt templates
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Without it, ingestion is disabled and RAG yields no context.
//   - ChatProvider: Without it, answering, breakdown, review and execution are disabled.
//   - TaskManager: Without it, publishing breakdowns and execution are disabled.
//   - ProjectTools: Without it, the execution loop offers no file tools.
//   - PullRequestSource: Without it, review is disabled.
//   - RunStore: Without it, runs are not recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
