/*
Package log configures the process-wide zerolog logger.

Init replaces the global Logger from a Config: level, console or JSON
output, and the writer. Components take a child logger once at construction:

	logger := log.WithComponent("scheduler")
	logger.Info().Str("vm_id", vm.ID).Msg("VM scheduled")

Stores log through WithKind and add the entity ID as "id", so every line
about an entity can be found by "kind" and "id".

Levels

	debug  every successful store mutation
	info   lifecycle of components, scheduling and reconciliation results
	warn   per-entity failures that a later cycle will retry
	error  failed cycles and server errors

The store never logs errors it returns to callers; the caller decides.
*/
package log
