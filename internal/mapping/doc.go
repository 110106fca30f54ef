// Package mapping persists the link between a delivered transcript file on
// the chat platform and the destination document created from it.
//
// The store is a single SQLite table opened in WAL mode with synchronous=FULL,
// so Put has reached disk before it returns. A missing mapping is a normal
// outcome: Get reports it through its boolean, never as an error.
package mapping
