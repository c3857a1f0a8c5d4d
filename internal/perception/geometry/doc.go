// Package geometry turns accepted segments into obstacles placed in the pose
// frame.
//
// Width is the chord between the first and last in-range readings (law of
// cosines), with an arc-length fallback when the radicand goes negative.
// Distance is the nearest reading in the segment, not a centroid, since the
// near face is what matters for avoidance. The obstacle center sits at
// nearest + width/2 along the boresight from the sensor, so its near edge
// touches the closest reading.
package geometry
