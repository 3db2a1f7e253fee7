// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// In Clean Architecture / Hexagonal Architecture, ports are the boundaries
// between the application core and the outside world. They define what the
// application needs from external systems without specifying how those needs
// are fulfilled.
//
// # Port Interfaces
//
//   - [Transport]: Performs one HTTP exchange with the mail service
//   - [CursorStore]: Persists the opaque listing cursor between runs
//   - [LabelCache]: Caches label name to id mappings
//   - [MessageSink]: Stores fetched messages durably
//   - [TokenSource]: Supplies the bearer token for requests
//   - [Logger]: Structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// # Usage
//
// The application layer (internal/app, internal/gmail) depends only on these
// interfaces. Infrastructure adapters (internal/adapters) implement them with
// concrete implementations (file system, net/http, sqlite, redis, zerolog).
//
// This separation enables:
//   - Testing application logic with fake implementations
//   - Swapping infrastructure without changing business logic
//   - Clear boundaries and dependency direction
package ports
