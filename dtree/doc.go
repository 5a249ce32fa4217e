// Package dtree trains regression trees by recursive variance reduction,
// optionally followed by reduced error pruning on a separate data set.
//
// The pruning inputs are tied to the Pruning parameter: they are required
// with ReducedErrorPruning and rejected with None.
package dtree
