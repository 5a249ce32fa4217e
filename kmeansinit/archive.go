package kmeansinit

import (
	"github.com/hupe1980/stepwise/archive"
	"github.com/hupe1980/stepwise/table"
)

// Archive tags of the k-means initialization types.
const (
	TagResult             archive.Tag = 0x4b490001
	TagStep1PartialResult archive.Tag = 0x4b490011
	TagStep2PartialResult archive.Tag = 0x4b490021
	TagLocalData          archive.Tag = 0x4b490022
	TagStep3PartialResult archive.Tag = 0x4b490031
	TagStep4PartialResult archive.Tag = 0x4b490041
	TagStep5PartialResult archive.Tag = 0x4b490051
)

// Register adds every k-means initialization type to reg.
func Register(reg *archive.Registry) error {
	return reg.RegisterAll(map[archive.Tag]archive.Factory{
		TagResult:             func() archive.Serializable { return &Result{} },
		TagStep1PartialResult: func() archive.Serializable { return &Step1PartialResult{} },
		TagStep2PartialResult: func() archive.Serializable { return &Step2PartialResult{} },
		TagLocalData:          func() archive.Serializable { return &LocalData{} },
		TagStep3PartialResult: func() archive.Serializable { return &Step3PartialResult{} },
		TagStep4PartialResult: func() archive.Serializable { return &Step4PartialResult{} },
		TagStep5PartialResult: func() archive.Serializable { return &Step5PartialResult{} },
	})
}

// Result holds the initial centroids.
type Result struct {
	// Centroids is NClusters×nFeatures.
	Centroids *table.Dense
}

func (r *Result) ArchiveTag() archive.Tag { return TagResult }

func (r *Result) MarshalArchive(w *archive.Writer) { w.Table(r.Centroids) }

func (r *Result) UnmarshalArchive(rd *archive.Reader) { r.Centroids = rd.Dense() }

func (r *Step1PartialResult) ArchiveTag() archive.Tag { return TagStep1PartialResult }

func (r *Step1PartialResult) MarshalArchive(w *archive.Writer) {
	w.Table(r.PartialClusters)
	w.Table(r.PartialClustersNumber)
}

func (r *Step1PartialResult) UnmarshalArchive(rd *archive.Reader) {
	r.PartialClusters = rd.Dense()
	r.PartialClustersNumber = rd.Dense()
}

func (l *LocalData) ArchiveTag() archive.Tag { return TagLocalData }

func (l *LocalData) MarshalArchive(w *archive.Writer) {
	w.Table(l.ClosestClusterDistance)
	w.Table(l.ClosestCluster)
	w.Table(l.NumberOfClusters)
	w.Table(l.CandidateRating)
}

func (l *LocalData) UnmarshalArchive(rd *archive.Reader) {
	l.ClosestClusterDistance = rd.Dense()
	l.ClosestCluster = rd.Dense()
	l.NumberOfClusters = rd.Dense()
	l.CandidateRating = rd.Dense()
}

func (r *Step2PartialResult) ArchiveTag() archive.Tag { return TagStep2PartialResult }

func (r *Step2PartialResult) MarshalArchive(w *archive.Writer) {
	w.Table(r.OutputOfStep2ForStep3)
	w.Table(r.OutputOfStep2ForStep5)
	if r.LocalData != nil {
		w.Object(r.LocalData)
	} else {
		w.Object(nil)
	}
}

func (r *Step2PartialResult) UnmarshalArchive(rd *archive.Reader) {
	r.OutputOfStep2ForStep3 = rd.Dense()
	r.OutputOfStep2ForStep5 = rd.Dense()
	local := &LocalData{}
	if rd.Object(local) {
		r.LocalData = local
	}
}

func (r *Step3PartialResult) ArchiveTag() archive.Tag { return TagStep3PartialResult }

func (r *Step3PartialResult) MarshalArchive(w *archive.Writer) {
	nodes := r.Nodes()
	w.Int(len(nodes))
	for _, node := range nodes {
		w.Int(node)
		w.Table(r.OutputOfStep3ForStep4[node])
	}
	w.Blob(r.RNGState)
}

func (r *Step3PartialResult) UnmarshalArchive(rd *archive.Reader) {
	n := rd.Int()
	if n < 0 || n > rd.Remaining() {
		rd.Fail(archive.ErrCorrupt)
		return
	}
	r.OutputOfStep3ForStep4 = make(map[int]*table.Dense, n)
	for range n {
		node := rd.Int()
		r.OutputOfStep3ForStep4[node] = rd.Dense()
	}
	r.RNGState = rd.Blob()
}

func (r *Step4PartialResult) ArchiveTag() archive.Tag { return TagStep4PartialResult }

func (r *Step4PartialResult) MarshalArchive(w *archive.Writer) { w.Table(r.OutputOfStep4) }

func (r *Step4PartialResult) UnmarshalArchive(rd *archive.Reader) { r.OutputOfStep4 = rd.Dense() }

func (r *Step5PartialResult) ArchiveTag() archive.Tag { return TagStep5PartialResult }

func (r *Step5PartialResult) MarshalArchive(w *archive.Writer) {
	w.Table(r.Candidates)
	w.Table(r.Weights)
	w.Int(r.NCandidates)
}

func (r *Step5PartialResult) UnmarshalArchive(rd *archive.Reader) {
	r.Candidates = rd.Dense()
	r.Weights = rd.Dense()
	r.NCandidates = rd.Int()
}
