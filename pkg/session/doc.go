// Package session holds server-side session state and its stores.
//
// A [Session] carries arbitrary JSON-serialisable values, the authenticated
// user id, a CSRF token and flash data. Flashed values survive exactly one
// more request: [Session.AgeFlash], called once per request before the
// session is saved, drops the values flashed for the previous request and
// marks the current ones as old.
//
// Stores:
//   - [MemoryStore] for tests and single-process apps
//   - [RedisStore] with per-session TTLs
//   - [PostgresStore] with the goose migration returned by [Migrations]
package session
