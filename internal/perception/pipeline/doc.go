// Package pipeline is the composition root of the perception core.
//
// Core owns the sweep buffer, the pose tracker and the committed obstacle
// list, and runs on one goroutine that blocks on the event queue. Every
// completed sweep is segmented and resolved inline; the resulting list
// replaces the previous one wholesale and is handed to the configured Sink.
// Other goroutines read committed state through Pose and Obstacles.
package pipeline
