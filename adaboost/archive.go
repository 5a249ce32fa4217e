package adaboost

import (
	"github.com/hupe1980/stepwise/archive"
)

// TagModel is the archive tag of Model.
const TagModel archive.Tag = 0x41420001

// Register adds the AdaBoost model to reg.
func Register(reg *archive.Registry) error {
	return reg.Register(TagModel, func() archive.Serializable { return &Model{} })
}

func (m *Model) ArchiveTag() archive.Tag { return TagModel }

func (m *Model) MarshalArchive(w *archive.Writer) {
	w.Table(m.Alpha)
	w.Uint8(uint8(m.Encoding))
	features := make([]int, len(m.Stumps))
	thresholds := make([]float64, len(m.Stumps))
	polarities := make([]float64, len(m.Stumps))
	for i, st := range m.Stumps {
		features[i], thresholds[i], polarities[i] = st.Feature, st.Threshold, st.Polarity
	}
	w.Ints(features)
	w.Float64s(thresholds)
	w.Float64s(polarities)
}

func (m *Model) UnmarshalArchive(rd *archive.Reader) {
	m.Alpha = rd.Dense()
	m.Encoding = Encoding(rd.Uint8())
	features := rd.Ints()
	thresholds := rd.Float64s()
	polarities := rd.Float64s()
	if rd.Err() != nil {
		return
	}
	if len(thresholds) != len(features) || len(polarities) != len(features) {
		rd.Fail(archive.ErrCorrupt)
		return
	}
	m.Stumps = make([]Stump, len(features))
	for i := range features {
		m.Stumps[i] = Stump{Feature: features[i], Threshold: thresholds[i], Polarity: polarities[i]}
	}
}
