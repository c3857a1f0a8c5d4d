// Package pose owns dead-reckoned robot pose.
//
// Key types: Pose, TrailSegment, Tracker.
//
// Frame: ground plane, y grows downward (screen convention), heading in
// degrees counter-clockwise from +x, wrapped into [0, 360). Positions are in
// map units: centimetres multiplied by Params.Scale.
package pose
