// Package kernel contains the small dense numeric routines the algorithm
// steps compute with: distances, D²-weighted sampling, symmetric eigen
// decomposition and Cholesky solves.
package kernel
