// Package testutil provides testing utilities for stepwise.
//
// This package is intended for use in tests only. It provides a seeded,
// thread-safe generator for input tables and helpers to cut a data set
// into node partitions.
//
// # Random Tables
//
//	rng := testutil.NewRNG(seed)
//	data := rng.Uniform(100, 4)                    // uniform [0, 1)
//	data, labels := rng.Clustered(centers, 90, 0.1) // noisy blobs
//
// # Partitions
//
//	parts := testutil.Split(data, 3)
package testutil
