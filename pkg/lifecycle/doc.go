// Package lifecycle orchestrates environment lifecycle commands. The
// Service loads the persisted environment, runs the typed phase
// transition, drives the external tooling for the command's steps, and
// persists the resulting phase. Failed commands produce a failure
// context and a trace file before the failure phase is persisted.
package lifecycle
