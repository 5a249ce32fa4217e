// Package quantiles computes per-feature quantiles of a data table in
// batch mode. Each order q is the linear interpolation between the order
// statistics at q·(n-1).
package quantiles
