// Package adaboost trains binary AdaBoost ensembles of decision stumps.
//
// Training is batch only. Labels may be given as {0, 1} or {-1, +1};
// Predict answers in the same convention.
//
//	model, err := adaboost.Train(ctx, adaboost.NewParameter(), data, labels)
//	if err != nil {
//	    return err
//	}
//	predicted, err := adaboost.Predict(model, data)
package adaboost
