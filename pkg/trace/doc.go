// Package trace writes failure trace files for lifecycle commands.
//
// A trace file is generated once per failed attempt under the
// environment's data/{name}/traces directory, named
// {timestamp}-{command}.log. It records the failure metadata and the
// full error chain, one line per level of unwrapping. Trace files are
// never overwritten; successful commands write nothing.
package trace
