// Package segment partitions a frozen sweep into runs of samples that each
// look like one object.
//
// A run opens on a strong, in-range sample that either follows a weak sample
// or rises sharply above its neighbour, and closes when a sample leaves range,
// turns weak, or drops sharply while both neighbours are strong. Using both
// the absolute reflectance and its step rejects speckle while still catching
// shallow grazing-angle edges. Rise and drop thresholds are independent.
//
// Extract is pure: the same sweep and params always yield the same segments.
package segment
