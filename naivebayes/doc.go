// Package naivebayes trains multinomial naive Bayes classifiers. Every node
// counts class sizes and per-class feature sums; the master adds them up
// and turns them into smoothed log probabilities.
package naivebayes
