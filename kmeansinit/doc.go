// Package kmeansinit computes initial centroids for k-means clustering as a
// five-step distributed protocol.
//
// Every method runs step 1 on each node. The deterministic and random
// methods finish in the step 2 master. k-means++ repeats steps 2 to 4 once
// per additional centroid, and k-means|| runs NRounds of steps 2 to 4 to
// oversample candidates that the step 5 master reduces with weighted
// k-means++.
//
// The per-step types can be driven by hand across processes, exchanging
// partial results as archives (see Register). Driver runs the whole
// protocol in-process over partitions:
//
//	d := &kmeansinit.Driver{Method: kmeansinit.ParallelPlusDense, Parameter: kmeansinit.NewParameter(8)}
//	res, err := d.Run(ctx, partitions)
package kmeansinit
