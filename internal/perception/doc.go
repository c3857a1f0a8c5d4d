// Package perception groups the on-board scan perception core.
//
// Data flow: events (typed robot reports) feed the sweep buffer and the pose
// tracker; each completed sweep is partitioned by segment and resolved into
// obstacles by geometry; pipeline owns all of that state on a single
// goroutine and publishes obstacle lists, poses and trail segments to sinks.
//
// Dependency rule: events, sweep and pose are leaves; segment depends on
// sweep; geometry depends on segment and pose; only pipeline imports them all.
// Nothing under perception references rendering or transport.
package perception
