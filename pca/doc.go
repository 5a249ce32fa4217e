// Package pca computes principal components with the correlation method as
// a two-step distributed protocol: every node accumulates observation
// count, column sums and cross products, and the master sums them,
// standardizes to a correlation matrix and decomposes it.
package pca
