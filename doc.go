// Package stepwise runs distributed statistics and machine learning
// algorithms as fixed sequences of numbered steps.
//
// Every algorithm family follows the same protocol: local steps run on each
// node over its own partition and produce partial results; master steps
// merge them; a finalizer turns the merged partial result into the model or
// result. Partial results are serializable archives, so the nodes can be
// separate processes exchanging blobs through S3, MinIO or a shared
// directory.
//
// # Quick Start
//
// In-process, with partial results passed by reference:
//
//	r := stepwise.New()
//	res, _ := r.KMeansInit(ctx, "", kmeansinit.ParallelPlusDense, kmeansinit.NewParameter(8), parts)
//	fmt.Println(res.Centroids)
//
// Through a blob store, so every partial result crosses an archive round
// trip and every step is committed before its output is consumed:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("jobs/"))
//	r := stepwise.New(
//	    stepwise.WithStore(store, blobstore.NewMemoryCommitLog()),
//	    stepwise.WithCompression(archive.CompressionZstd),
//	)
//
// # Algorithm Families
//
//   - kmeansinit: k-means initialization (deterministic, random, k-means++
//     and k-means||), up to five steps
//   - pca: principal components from the correlation matrix
//   - naivebayes: multinomial naive Bayes training
//   - ridge: ridge and linear regression by normal equations
//   - adaboost, dtree, quantiles: batch algorithms
//
// # Errors
//
// Validation collects every problem found into a status.Status. At this
// package's boundary errors are classified as ErrInvalidInput, ErrNotReady,
// ErrOutOfMemory, ErrNotFound or ErrCorrupt, and step failures are
// reported as *ErrStep.
package stepwise
