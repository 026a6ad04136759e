// Package stores provides the persistence layer for envforge: a
// crash-safe JSON repository for environment state guarded by a
// cross-process pid file lock, and a SQLite-backed audit log of
// lifecycle transitions.
package stores
