// Package memory persists a record of a finished planning run.
//
// Persistence model:
//   - One JSON document per run: ids, final status and every answered tool call.
//   - Tool arguments are not stored; the task title stands in for them.
package memory
