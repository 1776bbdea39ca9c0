// Package storage defines the conversation persistence contract shared by
// the storage backends, plus sentinel errors and tenant context helpers.
//
// Backends (memory, postgres) implement the Store interface. The engine
// appends messages through it during a pipeline run; the HTTP transport
// reads and deletes conversations through it.
package storage
