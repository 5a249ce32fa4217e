package pca

import "github.com/hupe1980/stepwise/archive"

// Archive tags of the PCA types.
const (
	TagPartialResult archive.Tag = 0x50430011
	TagResult        archive.Tag = 0x50430001
)

// Register adds every PCA type to reg.
func Register(reg *archive.Registry) error {
	return reg.RegisterAll(map[archive.Tag]archive.Factory{
		TagPartialResult: func() archive.Serializable { return &PartialResult{} },
		TagResult:        func() archive.Serializable { return &Result{} },
	})
}

func (r *PartialResult) ArchiveTag() archive.Tag { return TagPartialResult }

func (r *PartialResult) MarshalArchive(w *archive.Writer) {
	w.Table(r.NObservations)
	w.Table(r.SumData)
	w.Table(r.CrossProduct)
}

func (r *PartialResult) UnmarshalArchive(rd *archive.Reader) {
	r.NObservations = rd.Dense()
	r.SumData = rd.Dense()
	r.CrossProduct = rd.Dense()
}

func (r *Result) ArchiveTag() archive.Tag { return TagResult }

func (r *Result) MarshalArchive(w *archive.Writer) {
	w.Table(r.Eigenvalues)
	w.Table(r.Eigenvectors)
	w.Table(r.Means)
	w.Table(r.Variances)
}

func (r *Result) UnmarshalArchive(rd *archive.Reader) {
	r.Eigenvalues = rd.Dense()
	r.Eigenvectors = rd.Dense()
	r.Means = rd.Dense()
	r.Variances = rd.Dense()
}
