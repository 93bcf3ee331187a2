// Package gatehouse provides the authentication and authorization core of a
// web/mobile API backend: JWT access tokens, single-use rotating refresh
// tokens, Redis-backed revocation and one-time-code state, and a
// role/permission authorization model.
//
// # Architecture boundaries
//
// gatehouse is the orchestration surface. It exposes [Engine], [Config], the
// error taxonomy, and the guard predicates. Collaborators are injected at
// construction and abstracted behind small interfaces:
//
//   - [UserStore] and [RoleStore] — the relational credential store
//     (implemented by package store on PostgreSQL).
//   - [SessionStore] — TTL-bearing key-value state with atomic
//     check-and-delete (implemented by package cache on Redis).
//   - [Codec] — token signing and verification (implemented by package token).
//
// The HTTP layer (packages middleware and httpapi) consumes Engine methods
// and the guard predicates; it never reaches around the Engine into the
// stores.
//
// # Concurrency contract
//
// Engine methods are safe to call from multiple goroutines. The only
// operation with a strict cross-process guarantee is refresh-token and
// one-time-code consumption, which is atomic in the session store: of any
// number of concurrent consumers of the same token, exactly one succeeds.
package gatehouse
