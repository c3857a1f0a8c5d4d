// Package sweep accumulates scan samples between completion markers.
//
// Key types: Sample, Sweep (frozen, bearing-ordered), Buffer (mutable, one
// sweep in progress).
package sweep
