// Package jobs holds the domain model of the aggregator: source descriptors,
// strategy steps, normalized job records and the narrow interfaces every
// subsystem (ledger, cache, planner, coordinator, storage) is wired through.
package jobs
