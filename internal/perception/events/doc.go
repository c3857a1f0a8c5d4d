// Package events defines the typed reports the perception core consumes and
// the single-producer/single-consumer queue that carries them from the
// transport goroutine to the core goroutine.
//
// Key types: Event, ScanSample, ScanComplete, Move, Bump, Status, Info, Queue.
//
// Wire framing is not modelled here; see internal/telemetry for the decoder of
// the robot's line format.
package events
