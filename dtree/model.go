package dtree

import (
	"github.com/hupe1980/stepwise/archive"
)

// TagModel is the archive tag of Model.
const TagModel archive.Tag = 0x44540001

// Register adds the decision tree model to reg.
func Register(reg *archive.Registry) error {
	return reg.Register(TagModel, func() archive.Serializable { return &Model{} })
}

// Node is one tree node. Leaves have Feature -1.
type Node struct {
	Feature   int
	Threshold float64
	// Left receives rows with x[Feature] < Threshold, Right the others.
	Left, Right int
	// Value is the mean response of the training rows at the node.
	Value float64
	Count int
}

// Leaf reports whether the node has no children.
func (n Node) Leaf() bool { return n.Feature < 0 }

// Model is a trained regression tree; Nodes[0] is the root.
type Model struct {
	Nodes     []Node
	NFeatures int
}

// Leaves returns the number of leaves.
func (m *Model) Leaves() int {
	n := 0
	for _, nd := range m.Nodes {
		if nd.Leaf() {
			n++
		}
	}
	return n
}

// Depth returns the number of split levels on the longest path.
func (m *Model) Depth() int {
	var depth func(k int) int
	depth = func(k int) int {
		nd := m.Nodes[k]
		if nd.Leaf() {
			return 0
		}
		return 1 + max(depth(nd.Left), depth(nd.Right))
	}
	if len(m.Nodes) == 0 {
		return 0
	}
	return depth(0)
}

func (m *Model) predict(row []float64) float64 {
	k := 0
	for !m.Nodes[k].Leaf() {
		nd := m.Nodes[k]
		if row[nd.Feature] < nd.Threshold {
			k = nd.Left
		} else {
			k = nd.Right
		}
	}
	return m.Nodes[k].Value
}

func (m *Model) ArchiveTag() archive.Tag { return TagModel }

func (m *Model) MarshalArchive(w *archive.Writer) {
	w.Int(m.NFeatures)
	n := len(m.Nodes)
	features, left, right, counts := make([]int, n), make([]int, n), make([]int, n), make([]int, n)
	thresholds, values := make([]float64, n), make([]float64, n)
	for i, nd := range m.Nodes {
		features[i], left[i], right[i], counts[i] = nd.Feature, nd.Left, nd.Right, nd.Count
		thresholds[i], values[i] = nd.Threshold, nd.Value
	}
	w.Ints(features)
	w.Float64s(thresholds)
	w.Ints(left)
	w.Ints(right)
	w.Float64s(values)
	w.Ints(counts)
}

func (m *Model) UnmarshalArchive(rd *archive.Reader) {
	m.NFeatures = rd.Int()
	features := rd.Ints()
	thresholds := rd.Float64s()
	left := rd.Ints()
	right := rd.Ints()
	values := rd.Float64s()
	counts := rd.Ints()
	if rd.Err() != nil {
		return
	}
	n := len(features)
	if len(thresholds) != n || len(left) != n || len(right) != n || len(values) != n || len(counts) != n {
		rd.Fail(archive.ErrCorrupt)
		return
	}
	m.Nodes = make([]Node, n)
	for i := range n {
		nd := Node{Feature: features[i], Threshold: thresholds[i], Left: left[i], Right: right[i], Value: values[i], Count: counts[i]}
		if !nd.Leaf() && (nd.Feature >= m.NFeatures || nd.Left <= i || nd.Left >= n || nd.Right <= i || nd.Right >= n) {
			rd.Fail(archive.ErrCorrupt)
			return
		}
		m.Nodes[i] = nd
	}
}
