// Package testutil contains helpers shared by tests: EventBuilder constructs
// conversation events and Harness wires a RunContext to in-memory stores,
// playing the runner's persistence role.
package testutil
