// Package grading implements the grade distribution and final result rules:
// distribution lookup, raw score validation, period aggregation, final result
// combination and grading eligibility.
//
// Every function in this package is a deterministic function of its inputs.
// Nothing here performs I/O beyond the Source lookups a caller plugs into a
// Registry, so the functions may be called concurrently without locking.
package grading
