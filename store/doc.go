// Package store owns the persisted credential document: users, refresh-token
// records and reset-token records.
//
// # Components
//
//   - [Document]: the three collections and their lookup/removal helpers.
//   - [Backend]: persistence contract; [FileBackend], [RedisBackend],
//     [PostgresBackend] and [MemoryBackend] implement it.
//   - [Store]: single-writer actor that serializes every View and Update.
//
// # Architecture boundaries
//
// Every request reloads the document from its backend; no state is cached
// between requests. Backends make each Update a transactional
// read-modify-write against other processes.
//
// # What this package must NOT do
//
//   - Hash passwords or sign tokens.
//   - Decide which records are valid beyond expiry arithmetic.
//   - Import the root credstore package.
package store
