// Package domain contains the core domain entities and value objects for mailferry.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (HTTP, file system, logging) and
// contains only pure business logic.
//
// # Entities
//
//   - [Message]: A fetched mail message (envelope fields plus the raw document)
//   - [MessageIDPage]: One page of a mailbox listing with its continuation cursor
//   - [Label]: A mailbox label (system or user) used to mark synced messages
//   - [APIError]: A classified failure (Transient, Fatal, Configuration)
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Focused on business rules and invariants
//   - Testable without mocks or external systems
package domain
